// Package grpcapi implements the Evaluator gRPC service over the session
// store, plus the standard gRPC health service.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lemonberrylabs/exprcalc/pkg/expr"
	"github.com/lemonberrylabs/exprcalc/pkg/runtime"
	"github.com/lemonberrylabs/exprcalc/pkg/store"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// Server implements the Evaluator gRPC service.
type Server struct {
	store  *store.Store
	health *health.Server
	grpc   *grpc.Server
}

// New creates a new gRPC server wrapping the given store.
func New(s *store.Store) *Server {
	srv := &Server{
		store:  s,
		health: health.NewServer(),
	}

	gs := grpc.NewServer()
	RegisterEvaluatorServer(gs, srv)
	healthpb.RegisterHealthServer(gs, srv.health)
	srv.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop marks the server as not serving and gracefully stops it.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// --- Evaluator Service ---

func (s *Server) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()

	var seed map[string]types.Value
	if raw, ok := fields["bindings"]; ok && raw != nil {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "bindings must be a struct")
		}
		seed = make(map[string]types.Value, len(m))
		for name, v := range m {
			if !runtime.IsIdentifier(name) {
				return nil, status.Errorf(codes.InvalidArgument, "%q is not a valid name", name)
			}
			val, err := types.ValueFromGo(v)
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "binding %q: %v", name, err)
			}
			if val.IsAbsent() {
				return nil, status.Errorf(codes.InvalidArgument, "binding %q has no value", name)
			}
			seed[name] = val
		}
	}

	var labels map[string]string
	if raw, ok := fields["labels"].(map[string]interface{}); ok {
		labels = make(map[string]string, len(raw))
		for k, v := range raw {
			labels[k] = fmt.Sprint(v)
		}
	}

	displayName, _ := fields["displayName"].(string)
	sess := s.store.CreateSession(displayName, seed, labels)
	return toStruct(sessionToMap(sess))
}

func (s *Server) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.store.GetSession(sessionID(req))
	if err != nil {
		return nil, storeError(err)
	}
	return toStruct(sessionToMap(sess))
}

func (s *Server) DeleteSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := sessionID(req)
	if err := s.store.DeleteSession(id); err != nil {
		return nil, storeError(err)
	}
	return toStruct(map[string]interface{}{"name": "sessions/" + id, "done": true})
}

func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := sessionID(req)
	sess, err := s.store.GetSession(id)
	if err != nil {
		return nil, storeError(err)
	}
	line := req.GetFields()["line"].GetStringValue()

	start := time.Now()
	res, evalErr := sess.Runtime().Eval(line)
	if errors.Is(evalErr, runtime.ErrLineTooLong) {
		return nil, status.Error(codes.InvalidArgument, evalErr.Error())
	}

	ev, err := s.store.RecordEvaluation(id, line, res, evalErr, start)
	if err != nil {
		return nil, storeError(err)
	}
	if evalErr != nil {
		return nil, status.Error(codes.FailedPrecondition, evalErr.Error())
	}

	return toStruct(map[string]interface{}{
		"evaluation":  ev.Name,
		"value":       res.Value.ToGoValue(),
		"type":        res.Value.Type().String(),
		"display":     res.Value.String(),
		"diagnostics": diagnosticsToList(res.Diagnostics()),
	})
}

func (s *Server) Tokenize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	lexer := expr.NewLexer()
	tokens := []interface{}{}
	for tok := range lexer.Tokenize(req.GetFields()["line"].GetStringValue()) {
		m := map[string]interface{}{
			"type":  tok.Type.String(),
			"value": tok.Value,
			"line":  tok.Line,
			"pos":   tok.Pos,
		}
		if tok.Type == expr.TokenNumber {
			m["int"] = tok.IntVal
		}
		tokens = append(tokens, m)
	}
	res := runtime.Result{LexErrors: lexer.Errors()}

	return toStruct(map[string]interface{}{
		"tokens":      tokens,
		"diagnostics": diagnosticsToList(res.Diagnostics()),
	})
}

// --- Internal helpers ---

func sessionID(req *structpb.Struct) string {
	return req.GetFields()["session"].GetStringValue()
}

func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return st, nil
}

func sessionToMap(sess *store.Session) map[string]interface{} {
	m := map[string]interface{}{
		"name":            sess.Name,
		"id":              sess.ID,
		"state":           string(sess.State),
		"createTime":      sess.CreateTime.Format(time.RFC3339),
		"updateTime":      sess.UpdateTime.Format(time.RFC3339),
		"evaluationCount": sess.EvaluationCount,
	}
	if sess.DisplayName != "" {
		m["displayName"] = sess.DisplayName
	}
	if len(sess.Labels) > 0 {
		labels := make(map[string]interface{}, len(sess.Labels))
		for k, v := range sess.Labels {
			labels[k] = v
		}
		m["labels"] = labels
	}
	return m
}

func diagnosticsToList(diags []runtime.Diagnostic) []interface{} {
	out := make([]interface{}, len(diags))
	for i, d := range diags {
		out[i] = map[string]interface{}{
			"kind":    d.Kind,
			"message": d.Message,
			"text":    d.Text,
			"line":    d.Line,
			"pos":     d.Pos,
		}
	}
	return out
}
