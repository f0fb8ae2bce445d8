package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lemonberrylabs/exprcalc/pkg/runtime"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

func TestSessionLifecycle(t *testing.T) {
	s := New(0)

	sess := s.CreateSession("demo", map[string]types.Value{"a": types.NewInt(2)}, map[string]string{"env": "test"})
	if sess.ID == "" || sess.Name != "sessions/"+sess.ID {
		t.Fatalf("unexpected identity: %+v", sess)
	}
	if sess.State != SessionActive {
		t.Errorf("state = %s", sess.State)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if got.DisplayName != "demo" || got.Labels["env"] != "test" {
		t.Errorf("unexpected session: %+v", got)
	}
	if v := got.Runtime().Variables()["a"]; !v.Equal(types.NewInt(2)) {
		t.Errorf("seed not applied: %s", v)
	}

	if err := s.DeleteSession(sess.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := s.GetSession(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSession(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.ListEvaluations(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound listing evaluations, got %v", err)
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	s := New(0)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.CreateSession("", nil, nil).ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if n := len(s.ListSessions()); n != 100 {
		t.Errorf("ListSessions() returned %d", n)
	}
}

func TestListSessionsOrder(t *testing.T) {
	s := New(0)
	first := s.CreateSession("first", nil, nil)
	time.Sleep(2 * time.Millisecond)
	second := s.CreateSession("second", nil, nil)

	list := s.ListSessions()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("unexpected order: %v, %v", list[0].DisplayName, list[1].DisplayName)
	}
}

func TestEvaluationsFollowSessionSequence(t *testing.T) {
	s := New(0)
	sess := s.CreateSession("", nil, nil)
	rt := sess.Runtime()

	first, _ := rt.Eval("a = 1")
	second, _ := rt.Eval("a + 1")
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("Seq = %d, %d", first.Seq, second.Seq)
	}

	// Recorded out of order, as two racing requests may do.
	if _, err := s.RecordEvaluation(sess.ID, "a + 1", second, nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordEvaluation(sess.ID, "a = 1", first, nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	ev, _ := s.RecordEvaluation(sess.ID, "7", runtime.Result{Value: types.NewInt(7)}, nil, time.Now())
	if ev.Name != sess.Name+"/evaluations/3" {
		t.Errorf("unnumbered result named %s", ev.Name)
	}

	evs, _ := s.ListEvaluations(sess.ID)
	want := []struct{ line, suffix, result string }{
		{"a = 1", "/evaluations/1", "1"},
		{"a + 1", "/evaluations/2", "2"},
		{"7", "/evaluations/3", "7"},
	}
	if len(evs) != len(want) {
		t.Fatalf("got %d evaluations", len(evs))
	}
	for i, w := range want {
		if evs[i].Line != w.line || evs[i].Name != sess.Name+w.suffix || evs[i].Result != w.result {
			t.Errorf("evaluation %d = %s %q %s", i, evs[i].Name, evs[i].Line, evs[i].Result)
		}
	}
}

func TestRecordEvaluation(t *testing.T) {
	s := New(0)
	sess := s.CreateSession("", nil, nil)
	rt := sess.Runtime()

	start := time.Now()
	res, err := rt.Eval("[1, x]")
	ev, recErr := s.RecordEvaluation(sess.ID, "[1, x]", res, err, start)
	if recErr != nil {
		t.Fatal(recErr)
	}
	if ev.State != EvaluationSucceeded || ev.Result != "[1,0]" {
		t.Errorf("unexpected evaluation: %+v", ev)
	}
	if len(ev.Diagnostics) != 3 {
		t.Errorf("expected 3 diagnostics, got %+v", ev.Diagnostics)
	}
	if ev.Name != sess.Name+"/evaluations/1" {
		t.Errorf("name = %s", ev.Name)
	}

	res, err = rt.Eval("1 / 0")
	ev, _ = s.RecordEvaluation(sess.ID, "1 / 0", res, err, time.Now())
	if ev.State != EvaluationFailed || ev.Error == nil {
		t.Fatalf("expected FAILED evaluation, got %+v", ev)
	}
	if ev.Error.Payload != "division by zero" || len(ev.Error.Tags) != 1 || ev.Error.Tags[0] != types.TagZeroDivisionError {
		t.Errorf("unexpected error: %+v", ev.Error)
	}
	if ev.Result != "" {
		t.Errorf("failed evaluation has result %s", ev.Result)
	}

	evs, err := s.ListEvaluations(sess.ID)
	if err != nil || len(evs) != 2 {
		t.Fatalf("ListEvaluations() = %d, %v", len(evs), err)
	}
	if evs[0].Line != "[1, x]" || evs[1].Line != "1 / 0" {
		t.Errorf("history out of order")
	}

	got, _ := s.GetSession(sess.ID)
	if got.EvaluationCount != 2 || got.UpdateTime.Before(got.CreateTime) {
		t.Errorf("session not updated: %+v", got)
	}

	if _, err := s.RecordEvaluation("missing", "1", res, nil, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMaxLineLengthApplied(t *testing.T) {
	s := New(5)
	sess := s.CreateSession("", nil, nil)
	if _, err := sess.Runtime().Eval("1 + 2 + 3"); err == nil {
		t.Error("expected line length error")
	}
}

func TestDefaultBindings(t *testing.T) {
	s := New(0)
	defaults := map[string]types.Value{"a": types.NewInt(1), "b": types.NewInt(2)}
	s.SetDefaultBindings(defaults)
	defaults["a"] = types.NewInt(99)

	plain := s.CreateSession("", nil, nil).Runtime().Variables()
	if !plain["a"].Equal(types.NewInt(1)) || !plain["b"].Equal(types.NewInt(2)) {
		t.Errorf("defaults not applied: %v", plain)
	}

	seeded := s.CreateSession("", map[string]types.Value{"b": types.NewInt(3)}, nil).Runtime().Variables()
	if !seeded["a"].Equal(types.NewInt(1)) || !seeded["b"].Equal(types.NewInt(3)) {
		t.Errorf("seed should override defaults: %v", seeded)
	}
}

func TestConcurrentRecord(t *testing.T) {
	s := New(0)
	sess := s.CreateSession("", nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := sess.Runtime().Eval("1 + 1")
			if _, recErr := s.RecordEvaluation(sess.ID, "1 + 1", res, err, time.Now()); recErr != nil {
				t.Error(recErr)
			}
		}()
	}
	wg.Wait()

	evs, _ := s.ListEvaluations(sess.ID)
	if len(evs) != 20 {
		t.Errorf("expected 20 evaluations, got %d", len(evs))
	}
}
