package memory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"relay/internal/domain"
)

type fakeRecorder struct {
	entries    []domain.ContextEntry
	dispatches []domain.DispatchResult
	fail       bool
}

func (r *fakeRecorder) SaveEntry(_ context.Context, _ string, entry domain.ContextEntry) error {
	if r.fail {
		return errors.New("recorder down")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeRecorder) SaveDispatch(_ context.Context, _ string, result domain.DispatchResult) error {
	if r.fail {
		return errors.New("recorder down")
	}
	r.dispatches = append(r.dispatches, result)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceSessionReuse(t *testing.T) {
	svc := NewService(10, nil, testLogger())
	a := svc.Session("s1")
	b := svc.Session("s1")
	if a != b {
		t.Fatal("same session id returned distinct sessions")
	}
	if c := svc.Session("s2"); c == a {
		t.Fatal("distinct session ids share a session")
	}
}

func TestServiceAppendPersists(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(10, rec, testLogger())
	sess := svc.Session("s1")

	entry := svc.Append(context.Background(), sess, domain.RoleUser, "turn the lights on", nil)
	if entry.Turn != 0 {
		t.Fatalf("first turn = %d, want 0", entry.Turn)
	}
	if len(rec.entries) != 1 || rec.entries[0].Content != "turn the lights on" {
		t.Fatalf("recorder entries = %+v, want the appended entry", rec.entries)
	}
}

func TestServiceAppendDispatch(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(10, rec, testLogger())
	sess := svc.Session("s1")

	result := domain.DispatchResult{
		Capability: "set_volume",
		Success:    true,
		Output:     "volume set",
		Duration:   12 * time.Millisecond,
	}
	entry := svc.AppendDispatch(context.Background(), sess, result)

	if entry.Role != domain.RoleSystem {
		t.Fatalf("dispatch entry role = %q, want %q", entry.Role, domain.RoleSystem)
	}
	var got domain.DispatchResult
	if err := json.Unmarshal(entry.Payload, &got); err != nil {
		t.Fatalf("unmarshal dispatch payload: %v", err)
	}
	if got.Capability != "set_volume" || !got.Success {
		t.Fatalf("dispatch payload = %+v, want recorded result", got)
	}
	if len(rec.dispatches) != 1 {
		t.Fatalf("recorder dispatches = %d, want 1", len(rec.dispatches))
	}
}

func TestServiceRecorderFailureIsAbsorbed(t *testing.T) {
	rec := &fakeRecorder{fail: true}
	svc := NewService(10, rec, testLogger())
	sess := svc.Session("s1")

	svc.Append(context.Background(), sess, domain.RoleUser, "hello", nil)
	if sess.Context.Len() != 1 {
		t.Fatalf("context length = %d after recorder failure, want 1", sess.Context.Len())
	}
}

func TestServiceReset(t *testing.T) {
	svc := NewService(10, nil, testLogger())
	sess := svc.Session("s1")
	svc.Append(context.Background(), sess, domain.RoleUser, "hello", nil)
	sess.Context.SetScratch("k", "v")

	svc.Reset("s1")

	if sess.Context.Len() != 0 {
		t.Fatal("reset did not clear history")
	}
	if _, ok := sess.Context.GetScratch("k"); ok {
		t.Fatal("reset did not clear scratch memory")
	}

	// Resetting an unknown session is a no-op.
	svc.Reset("missing")
}
