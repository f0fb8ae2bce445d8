// Package store provides in-memory storage for sessions and their
// evaluation history.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/exprcalc/pkg/runtime"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// SessionState represents the state of a stored session.
type SessionState string

const (
	SessionActive SessionState = "ACTIVE"
)

// EvaluationState represents the outcome of one evaluated line.
type EvaluationState string

const (
	EvaluationSucceeded EvaluationState = "SUCCEEDED"
	EvaluationFailed    EvaluationState = "FAILED"
)

// Session is a stored evaluation session.
type Session struct {
	Name            string            `json:"name"`
	ID              string            `json:"id"`
	DisplayName     string            `json:"displayName,omitempty"`
	State           SessionState      `json:"state"`
	CreateTime      time.Time         `json:"createTime"`
	UpdateTime      time.Time         `json:"updateTime"`
	EvaluationCount int               `json:"evaluationCount"`
	Labels          map[string]string `json:"labels,omitempty"`

	runtime *runtime.Session
}

// Runtime returns the live session that evaluates lines.
func (s *Session) Runtime() *runtime.Session {
	return s.runtime
}

// Evaluation is one recorded line and its outcome.
type Evaluation struct {
	Name        string               `json:"name"`
	Line        string               `json:"line"`
	State       EvaluationState      `json:"state"`
	Result      string               `json:"result,omitempty"`
	Diagnostics []runtime.Diagnostic `json:"diagnostics,omitempty"`
	Error       *EvaluationError     `json:"error,omitempty"`
	StartTime   time.Time            `json:"startTime"`
	EndTime     time.Time            `json:"endTime"`

	seq int
}

// EvaluationError describes the failure of a FAILED evaluation.
type EvaluationError struct {
	Payload string   `json:"payload"`
	Tags    []string `json:"tags,omitempty"`
}

// Store is a thread-safe in-memory storage for sessions and evaluations.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	evaluations map[string][]*Evaluation
	maxLine     int
	defaults    map[string]types.Value
}

// New creates a new empty store. Sessions it creates reject lines longer
// than maxLineLength; zero keeps the runtime default.
func New(maxLineLength int) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		evaluations: make(map[string][]*Evaluation),
		maxLine:     maxLineLength,
	}
}

// SetDefaultBindings sets the bindings every new session starts with.
// Bindings passed to CreateSession take precedence over them.
func (s *Store) SetDefaultBindings(bindings map[string]types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = make(map[string]types.Value, len(bindings))
	for k, v := range bindings {
		s.defaults[k] = v.Clone()
	}
}

// CreateSession creates a session whose environment starts with the default
// bindings overlaid with seed.
func (s *Store) CreateSession(displayName string, seed map[string]types.Value, labels map[string]string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := make(map[string]types.Value, len(s.defaults)+len(seed))
	for k, v := range s.defaults {
		env[k] = v
	}
	for k, v := range seed {
		env[k] = v
	}
	rt := runtime.NewSession(env)
	rt.SetMaxLineLength(s.maxLine)

	id := uuid.New().String()
	now := time.Now()
	sess := &Session{
		Name:        "sessions/" + id,
		ID:          id,
		DisplayName: displayName,
		State:       SessionActive,
		CreateTime:  now,
		UpdateTime:  now,
		Labels:      labels,
		runtime:     rt,
	}
	s.sessions[id] = sess
	return sess.snapshot()
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session '%s' %w", id, ErrNotFound)
	}
	return sess.snapshot(), nil
}

// ListSessions returns all sessions, oldest first.
func (s *Store) ListSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess.snapshot())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreateTime.Equal(result[j].CreateTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreateTime.Before(result[j].CreateTime)
	})
	return result
}

// DeleteSession removes a session and its history. A script still running
// in it stops before its next line.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session '%s' %w", id, ErrNotFound)
	}
	sess.runtime.Cancel()
	delete(s.sessions, id)
	delete(s.evaluations, id)
	return nil
}

// RecordEvaluation adds the outcome of evaluating line to the session's
// history. evalErr marks the evaluation FAILED. The history is ordered and
// numbered by res.Seq, so concurrent callers may record in any order; a
// zero Seq places the evaluation after the current last one.
func (s *Store) RecordEvaluation(id, line string, res runtime.Result, evalErr error, start time.Time) (*Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session '%s' %w", id, ErrNotFound)
	}

	history := s.evaluations[id]
	seq := res.Seq
	if seq == 0 {
		seq = 1
		if n := len(history); n > 0 {
			seq = history[n-1].seq + 1
		}
	}

	now := time.Now()
	ev := &Evaluation{
		Name:        fmt.Sprintf("%s/evaluations/%d", sess.Name, seq),
		Line:        line,
		State:       EvaluationSucceeded,
		Diagnostics: res.Diagnostics(),
		StartTime:   start,
		EndTime:     now,
		seq:         seq,
	}
	if evalErr != nil {
		ev.State = EvaluationFailed
		ev.Error = &EvaluationError{Payload: evalErr.Error()}
		var ee *types.EvalError
		if errors.As(evalErr, &ee) {
			ev.Error.Payload = ee.Message
			ev.Error.Tags = ee.Tags
		}
	} else if b, err := res.Value.MarshalJSON(); err == nil {
		ev.Result = string(b)
	} else {
		ev.Result = res.Value.String()
	}

	i := sort.Search(len(history), func(i int) bool { return history[i].seq > seq })
	s.evaluations[id] = slices.Insert(history, i, ev)
	sess.EvaluationCount++
	sess.UpdateTime = now
	return ev, nil
}

// ListEvaluations returns a session's evaluations in the order they ran.
func (s *Store) ListEvaluations(id string) ([]*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, fmt.Errorf("session '%s' %w", id, ErrNotFound)
	}
	return append([]*Evaluation(nil), s.evaluations[id]...), nil
}

func (sess *Session) snapshot() *Session {
	cp := *sess
	return &cp
}
