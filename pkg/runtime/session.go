// Package runtime hosts evaluation sessions: one lexer and parser pair
// whose environment persists across the lines evaluated in it.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lemonberrylabs/exprcalc/pkg/expr"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

// DefaultMaxLineLength is the maximum allowed length for a single line.
const DefaultMaxLineLength = 400

// MaxLinesPerScript is the maximum number of lines a single script may evaluate.
const MaxLinesPerScript = 100_000

var (
	// ErrLineTooLong is returned for a line longer than the session limit.
	// The line is not scanned and neither error log changes.
	ErrLineTooLong = errors.New("line too long")

	// ErrCancelled is returned by EvalScript after Cancel.
	ErrCancelled = errors.New("evaluation cancelled")
)

// Result is the outcome of evaluating one line.
type Result struct {
	Line        int // 1-based line number within a script, 0 for Eval
	Seq         int // 1-based position among all lines the session evaluated
	Value       types.Value
	LexErrors   []expr.LexError
	ParseErrors []expr.ParseError
}

// HasErrors reports whether the line produced any log records.
func (r Result) HasErrors() bool {
	return len(r.LexErrors) > 0 || len(r.ParseErrors) > 0
}

// Session evaluates lines against a persistent environment. It is safe for
// concurrent use; calls are serialized.
type Session struct {
	mu        sync.Mutex
	lexer     *expr.Lexer
	parser    *expr.Parser
	maxLine   int
	lineCount int
	cancelled atomic.Bool
}

// NewSession creates a session whose environment starts with seed.
func NewSession(seed map[string]types.Value) *Session {
	env := expr.NewEnvironment()
	for name, v := range seed {
		env.Set(name, v.Clone())
	}
	return &Session{
		lexer:   expr.NewLexer(),
		parser:  expr.NewParserWithEnv(env),
		maxLine: DefaultMaxLineLength,
	}
}

// SetMaxLineLength changes the line length limit. n <= 0 restores the default.
func (s *Session) SetMaxLineLength(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		n = DefaultMaxLineLength
	}
	s.maxLine = n
}

// Eval evaluates one line. The result carries only the log records appended
// by this call. A non-nil error is either ErrLineTooLong or the
// *types.EvalError that aborted the line; the result still carries the
// records logged before the failure.
func (s *Session) Eval(line string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evalLocked(line)
}

func (s *Session) evalLocked(line string) (Result, error) {
	if len(line) > s.maxLine {
		return Result{Value: types.Absent}, fmt.Errorf("%w: %d characters exceeds maximum of %d",
			ErrLineTooLong, len(line), s.maxLine)
	}

	lexMark := len(s.lexer.Errors())
	parseMark := len(s.parser.Errors())
	s.lineCount++

	val, err := s.parser.Parse(s.lexer.Tokenize(line))
	return Result{
		Seq:         s.lineCount,
		Value:       val,
		LexErrors:   slices.Clone(s.lexer.Errors()[lexMark:]),
		ParseErrors: slices.Clone(s.parser.Errors()[parseMark:]),
	}, err
}

// EvalScript evaluates lines in order within one session. Blank lines and
// comment-only lines are skipped. Evaluation stops at the first hard
// failure, at cancellation, or when ctx is done; the results gathered so
// far are returned with the error.
func (s *Session) EvalScript(ctx context.Context, lines []string) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []Result
	for i, line := range lines {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		if s.cancelled.Load() {
			return results, ErrCancelled
		}
		if isBlank(line) {
			continue
		}
		if len(results) >= MaxLinesPerScript {
			return results, fmt.Errorf("script exceeded maximum of %d lines", MaxLinesPerScript)
		}

		res, err := s.evalLocked(line)
		res.Line = i + 1
		results = append(results, res)
		if err != nil {
			return results, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return results, nil
}

// Cancel stops a running EvalScript before its next line. Single Eval
// calls are not affected.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// LineCount returns the number of lines evaluated so far.
func (s *Session) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineCount
}

// Variables returns a copy of the session's bindings.
func (s *Session) Variables() map[string]types.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parser.Env().Snapshot()
}

// ErrorCounts returns the lengths of the lexer and parser error logs.
func (s *Session) ErrorCounts() (lex, parse int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lexer.Errors()), len(s.parser.Errors())
}

// SplitLines splits script source into lines, dropping a trailing carriage
// return from each.
func SplitLines(src string) []string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func isBlank(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return trimmed == "" || trimmed[0] == '#'
}
