// Package api implements the REST API for evaluation sessions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/exprcalc/pkg/expr"
	"github.com/lemonberrylabs/exprcalc/pkg/runtime"
	"github.com/lemonberrylabs/exprcalc/pkg/store"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// ScriptExt is the file extension LoadDir picks up.
const ScriptExt = ".calc"

// Server is the REST API server.
type Server struct {
	app   *fiber.App
	store *store.Store
}

// New creates a new API server.
func New(s *store.Store) *Server {
	srv := &Server{store: s}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	// Sessions API
	app.Post("/v1/sessions", srv.createSession)
	app.Get("/v1/sessions", srv.listSessions)
	app.Get("/v1/sessions/:session", srv.getSession)
	app.Delete("/v1/sessions/:session", srv.deleteSession)

	// Evaluation API
	app.Post("/v1/sessions/:session\\:evaluate", srv.evaluate)
	app.Post("/v1/sessions/:session\\:evaluateScript", srv.evaluateScript)
	app.Get("/v1/sessions/:session/evaluations", srv.listEvaluations)
	app.Get("/v1/sessions/:session/variables", srv.getVariables)

	app.Post("/v1/tokenize", srv.tokenize)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func apiError(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func notFound(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apiError(c, 404, "NOT_FOUND", err.Error())
	}
	return apiError(c, 500, "INTERNAL", err.Error())
}

// --- Session Handlers ---

type createSessionRequest struct {
	DisplayName string            `json:"displayName"`
	Bindings    json.RawMessage   `json:"bindings"`
	Labels      map[string]string `json:"labels"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
		}
	}

	seed, err := decodeBindings(req.Bindings)
	if err != nil {
		return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid bindings: %v", err))
	}

	sess := s.store.CreateSession(req.DisplayName, seed, req.Labels)
	return c.Status(200).JSON(sessionToJSON(sess))
}

// decodeBindings decodes a JSON object of bindings, keeping integers exact.
func decodeBindings(raw json.RawMessage) (map[string]types.Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}

	seed := make(map[string]types.Value, len(m))
	for name, v := range m {
		if !runtime.IsIdentifier(name) {
			return nil, fmt.Errorf("%q is not a valid name", name)
		}
		val, err := types.ValueFromGo(v)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		if val.IsAbsent() {
			return nil, fmt.Errorf("binding %q has no value", name)
		}
		seed[name] = val
	}
	return seed, nil
}

func (s *Server) getSession(c *fiber.Ctx) error {
	sess, err := s.store.GetSession(c.Params("session"))
	if err != nil {
		return notFound(c, err)
	}
	return c.JSON(sessionToJSON(sess))
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	sessions := s.store.ListSessions()

	items := make([]fiber.Map, len(sessions))
	for i, sess := range sessions {
		items[i] = sessionToJSON(sess)
	}

	return c.JSON(fiber.Map{
		"sessions": items,
	})
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	id := c.Params("session")
	if err := s.store.DeleteSession(id); err != nil {
		return notFound(c, err)
	}
	return c.JSON(fiber.Map{
		"name": "sessions/" + id,
		"done": true,
	})
}

// --- Evaluation Handlers ---

type evaluateRequest struct {
	Line string `json:"line"`
}

func (s *Server) evaluate(c *fiber.Ctx) error {
	id := c.Params("session")
	sess, err := s.store.GetSession(id)
	if err != nil {
		return notFound(c, err)
	}

	var req evaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	start := time.Now()
	res, evalErr := sess.Runtime().Eval(req.Line)
	if errors.Is(evalErr, runtime.ErrLineTooLong) {
		return apiError(c, 400, "INVALID_ARGUMENT", evalErr.Error())
	}

	ev, err := s.store.RecordEvaluation(id, req.Line, res, evalErr, start)
	if err != nil {
		return notFound(c, err)
	}
	if evalErr != nil {
		return apiError(c, 400, "FAILED_PRECONDITION", evalErr.Error())
	}
	return c.JSON(resultToJSON(ev.Name, res))
}

type evaluateScriptRequest struct {
	Source string `json:"source"`
}

func (s *Server) evaluateScript(c *fiber.Ctx) error {
	id := c.Params("session")
	sess, err := s.store.GetSession(id)
	if err != nil {
		return notFound(c, err)
	}

	var req evaluateScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	results, scriptErr := s.runScript(c.UserContext(), id, sess.Runtime(), runtime.SplitLines(req.Source))
	body := fiber.Map{"results": results}
	if scriptErr != nil {
		body["error"] = fiber.Map{
			"code":    400,
			"message": scriptErr.Error(),
			"status":  "FAILED_PRECONDITION",
		}
		return c.Status(400).JSON(body)
	}
	return c.JSON(body)
}

// runScript evaluates lines in the session and records one evaluation per
// evaluated line, numbered by the session's own sequence. Only the last line can carry the failure that stopped the
// script.
func (s *Server) runScript(ctx context.Context, id string, rt *runtime.Session, lines []string) ([]fiber.Map, error) {
	start := time.Now()
	results, scriptErr := rt.EvalScript(ctx, lines)

	out := make([]fiber.Map, 0, len(results))
	for i, res := range results {
		var lineErr error
		if i == len(results)-1 {
			lineErr = unwrapLineError(scriptErr)
		}
		// A rejected over-long line was never evaluated and has no number.
		if res.Seq == 0 {
			m := resultToJSON("", res)
			m["line"] = res.Line
			out = append(out, m)
			continue
		}
		ev, err := s.store.RecordEvaluation(id, lines[res.Line-1], res, lineErr, start)
		if err != nil {
			return out, err
		}
		m := resultToJSON(ev.Name, res)
		m["line"] = res.Line
		out = append(out, m)
	}
	return out, scriptErr
}

// unwrapLineError returns the evaluation failure inside a script error, or
// nil when the script stopped for another reason.
func unwrapLineError(err error) error {
	var evalErr *types.EvalError
	if errors.As(err, &evalErr) {
		return evalErr
	}
	return nil
}

func (s *Server) listEvaluations(c *fiber.Ctx) error {
	evs, err := s.store.ListEvaluations(c.Params("session"))
	if err != nil {
		return notFound(c, err)
	}
	return c.JSON(fiber.Map{
		"evaluations": evs,
	})
}

func (s *Server) getVariables(c *fiber.Ctx) error {
	sess, err := s.store.GetSession(c.Params("session"))
	if err != nil {
		return notFound(c, err)
	}
	vars := sess.Runtime().Variables()

	if c.Query("format") == "yaml" {
		data, err := runtime.MarshalBindings(vars)
		if err != nil {
			return apiError(c, 500, "INTERNAL", err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(data)
	}

	return c.JSON(fiber.Map{
		"variables": vars,
	})
}

// --- Tokenize Handler ---

func (s *Server) tokenize(c *fiber.Ctx) error {
	var req evaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	lexer := expr.NewLexer()
	tokens := make([]fiber.Map, 0)
	for tok := range lexer.Tokenize(req.Line) {
		tokens = append(tokens, tokenToJSON(tok))
	}
	res := runtime.Result{LexErrors: lexer.Errors()}

	return c.JSON(fiber.Map{
		"tokens":      tokens,
		"diagnostics": res.Diagnostics(),
	})
}

// --- Directory Loading ---

// LoadDir creates a session for every .calc file in dir and evaluates the
// file's lines in it. A sibling .yaml file with the same base name seeds the
// session's bindings. The file name (sans extension) becomes the session's
// display name.
func (s *Server) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading scripts directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ScriptExt {
			continue
		}
		name := entry.Name()
		base := strings.TrimSuffix(name, ScriptExt)

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("Warning: could not read %q: %v", name, err)
			continue
		}

		var seed map[string]types.Value
		seedPath := filepath.Join(dir, base+".yaml")
		if _, err := os.Stat(seedPath); err == nil {
			seed, err = runtime.LoadBindingsFile(seedPath)
			if err != nil {
				log.Printf("Warning: skipping %q: %v", name, err)
				continue
			}
		}

		sess := s.store.CreateSession(base, seed, map[string]string{"source": name})
		if _, err := s.runScript(context.Background(), sess.ID, sess.Runtime(), runtime.SplitLines(string(data))); err != nil {
			log.Printf("Warning: %s: %v", name, err)
		}

		loaded++
		log.Printf("Loaded session %q (%s) from %s", base, sess.ID, name)
	}

	log.Printf("Loaded %d session(s) from %s", loaded, dir)
	return nil
}

// --- Helpers ---

func sessionToJSON(sess *store.Session) fiber.Map {
	m := fiber.Map{
		"name":            sess.Name,
		"id":              sess.ID,
		"state":           sess.State,
		"createTime":      sess.CreateTime.Format(time.RFC3339),
		"updateTime":      sess.UpdateTime.Format(time.RFC3339),
		"evaluationCount": sess.EvaluationCount,
	}
	if sess.DisplayName != "" {
		m["displayName"] = sess.DisplayName
	}
	if len(sess.Labels) > 0 {
		m["labels"] = sess.Labels
	}
	return m
}

func resultToJSON(name string, res runtime.Result) fiber.Map {
	return fiber.Map{
		"evaluation":  name,
		"value":       res.Value,
		"type":        res.Value.Type().String(),
		"display":     res.Value.String(),
		"diagnostics": res.Diagnostics(),
	}
}

func tokenToJSON(tok expr.Token) fiber.Map {
	m := fiber.Map{
		"type":  tok.Type.String(),
		"value": tok.Value,
		"line":  tok.Line,
		"pos":   tok.Pos,
	}
	if tok.Type == expr.TokenNumber {
		m["int"] = tok.IntVal
	}
	return m
}
