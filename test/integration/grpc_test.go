package integration

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcapi "github.com/lemonberrylabs/exprcalc/pkg/api/grpc"
)

func newGRPCConn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(grpcEndpoint(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func grpcStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}
	return s
}

func TestGRPC_Health(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(newGRPCConn(t)).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.GetStatus())
	}
}

func TestGRPC_EvaluateSharesRESTSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := createSession(t, nil)
	client := grpcapi.NewEvaluatorClient(newGRPCConn(t))

	if _, err := client.Evaluate(ctx, grpcStruct(t, map[string]interface{}{"session": id, "line": "n = 7"})); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// The binding made over gRPC is visible over REST.
	assertValue(t, evaluate(t, id, "n * 6"), 42)

	_, err := client.Evaluate(ctx, grpcStruct(t, map[string]interface{}{"session": id, "line": "n / 0"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition, got %v", err)
	}

	_, err = client.GetSession(ctx, grpcStruct(t, map[string]interface{}{"session": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}
