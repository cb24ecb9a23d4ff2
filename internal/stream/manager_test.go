// File: internal/stream/manager_test.go
// Brief: Session lifecycle behavior: idempotent start, ordered lossless
// delivery under a tiny queue, clean stop semantics, and error surfacing
// for failing sources.

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/klex/internal/search"
)

type fakeSource struct {
	mu        sync.Mutex
	opens     int
	openErr   error
	texts     []string
	endless   bool
	streamErr error
}

func (f *fakeSource) StreamLive(ctx context.Context, namespace, pod, container string) (<-chan search.LogLine, <-chan error, error) {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, nil, f.openErr
	}
	lines := make(chan search.LogLine)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(lines)
		n := 0
		for _, text := range f.texts {
			n++
			select {
			case lines <- search.LogLine{Number: n, Text: text}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if f.streamErr != nil {
			errs <- f.streamErr
			return
		}
		for f.endless {
			n++
			select {
			case lines <- search.LogLine{Number: n, Text: fmt.Sprintf("line %d", n)}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return lines, errs, nil
}

func (f *fakeSource) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func testKey(pod string) Key {
	return Key{Namespace: "default", Pod: pod, Container: "app", Subscriber: "test"}
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatalf("events channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func drainEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out draining events, got %d so far", len(out))
		}
	}
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	src := &fakeSource{endless: true}
	m := NewManager(src, 0, logr.Discard())
	key := testKey("web-0")

	first, err := m.Start(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev := nextEvent(t, first.Events()); ev.Type != EventStarted {
		t.Fatalf("expected started event, got %v", ev.Type)
	}

	second, err := m.Start(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected the running session to be reused")
	}
	if got := src.openCount(); got != 1 {
		t.Fatalf("expected a single stream open, got %d", got)
	}

	if err := m.Stop(key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drainEvents(t, first.Events())
}

func TestStartRejectsIncompleteKey(t *testing.T) {
	m := NewManager(&fakeSource{}, 0, logr.Discard())
	if _, err := m.Start(context.Background(), Key{Namespace: "default"}); err == nil {
		t.Fatalf("expected an error for a key without pod and container")
	}
}

func TestImmediateOpenFailure(t *testing.T) {
	boom := errors.New("pod is waiting to start: ContainerCreating")
	src := &fakeSource{openErr: boom}
	m := NewManager(src, 0, logr.Discard())
	key := testKey("web-0")

	s, err := m.Start(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := drainEvents(t, s.Events())
	if len(got) != 2 {
		t.Fatalf("expected error then stopped, got %d events", len(got))
	}
	if got[0].Type != EventError || !errors.Is(got[0].Err, boom) {
		t.Fatalf("expected the open failure as the first event, got %v (%v)", got[0].Type, got[0].Err)
	}
	if got[1].Type != EventStopped {
		t.Fatalf("expected stopped as the final event, got %v", got[1].Type)
	}
	if s.State() != StateStopped {
		t.Fatalf("expected state stopped, got %v", s.State())
	}
	if keys := m.Keys(); len(keys) != 0 {
		t.Fatalf("expected the session to deregister, still present: %v", keys)
	}
}

func TestLinesDeliveredInOrderThroughTinyQueue(t *testing.T) {
	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("entry %d", i+1)
	}
	src := &fakeSource{texts: texts}
	m := NewManager(src, 1, logr.Discard())

	s, err := m.Start(context.Background(), testKey("web-0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := drainEvents(t, s.Events())

	if got[0].Type != EventStarted {
		t.Fatalf("expected started first, got %v", got[0].Type)
	}
	if got[len(got)-1].Type != EventStopped {
		t.Fatalf("expected stopped last, got %v", got[len(got)-1].Type)
	}
	want := 0
	for _, ev := range got[1 : len(got)-1] {
		if ev.Type != EventLine {
			t.Fatalf("unexpected event %v mid-stream", ev.Type)
		}
		want++
		if ev.Line.Number != want {
			t.Fatalf("expected line %d, got %d", want, ev.Line.Number)
		}
	}
	if want != len(texts) {
		t.Fatalf("expected %d lines, got %d", len(texts), want)
	}
	if s.Cursor() != len(texts) {
		t.Fatalf("expected cursor %d, got %d", len(texts), s.Cursor())
	}
}

func TestMidStreamErrorSurfacesThenStops(t *testing.T) {
	boom := errors.New("connection reset by peer")
	src := &fakeSource{texts: []string{"one", "two"}, streamErr: boom}
	m := NewManager(src, 0, logr.Discard())

	s, err := m.Start(context.Background(), testKey("web-0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := drainEvents(t, s.Events())
	types := make([]EventType, len(got))
	for i, ev := range got {
		types[i] = ev.Type
	}
	wantTypes := []EventType{EventStarted, EventLine, EventLine, EventError, EventStopped}
	if len(types) != len(wantTypes) {
		t.Fatalf("expected %v, got %v", wantTypes, types)
	}
	for i := range wantTypes {
		if types[i] != wantTypes[i] {
			t.Fatalf("expected %v, got %v", wantTypes, types)
		}
	}
	if !errors.Is(got[3].Err, boom) {
		t.Fatalf("expected the stream error to surface, got %v", got[3].Err)
	}
}

func TestStopCancelsRunningSession(t *testing.T) {
	src := &fakeSource{endless: true}
	m := NewManager(src, 0, logr.Discard())
	key := testKey("web-0")

	s, err := m.Start(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev := nextEvent(t, s.Events()); ev.Type != EventStarted {
		t.Fatalf("expected started event, got %v", ev.Type)
	}
	if err := m.Stop(key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := drainEvents(t, s.Events())
	if len(got) == 0 || got[len(got)-1].Type != EventStopped {
		t.Fatalf("expected stopped as the final event, got %v", got)
	}
	for _, ev := range got {
		if ev.Type == EventError {
			t.Fatalf("cancellation is a clean stop, got error event: %v", ev.Err)
		}
	}
	if s.State() != StateStopped {
		t.Fatalf("expected state stopped, got %v", s.State())
	}

	// Stopping again, or stopping a key that was never started, is a no-op.
	if err := m.Stop(key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Stop(testKey("absent")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRestartAfterStopOpensFreshStream(t *testing.T) {
	src := &fakeSource{endless: true}
	m := NewManager(src, 0, logr.Discard())
	key := testKey("web-0")

	first, err := m.Start(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev := nextEvent(t, first.Events()); ev.Type != EventStarted {
		t.Fatalf("expected started event, got %v", ev.Type)
	}
	if err := m.Stop(key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drainEvents(t, first.Events())

	second, err := m.Start(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == first {
		t.Fatalf("expected a fresh session after a full stop")
	}
	if ev := nextEvent(t, second.Events()); ev.Type != EventStarted {
		t.Fatalf("expected started event, got %v", ev.Type)
	}
	if got := src.openCount(); got != 2 {
		t.Fatalf("expected two stream opens, got %d", got)
	}

	m.StopAll()
	drainEvents(t, second.Events())
}

func TestKeysAreSorted(t *testing.T) {
	src := &fakeSource{endless: true}
	m := NewManager(src, 0, logr.Discard())

	b, err := m.Start(context.Background(), testKey("b-pod"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := m.Start(context.Background(), testKey("a-pod"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := m.Keys()
	if len(keys) != 2 || keys[0].Pod != "a-pod" || keys[1].Pod != "b-pod" {
		t.Fatalf("expected sorted keys, got %v", keys)
	}

	m.StopAll()
	drainEvents(t, a.Events())
	drainEvents(t, b.Events())
}

func TestSnapshotReflectsSessions(t *testing.T) {
	src := &fakeSource{endless: true}
	m := NewManager(src, 0, logr.Discard())

	s, err := m.Start(context.Background(), testKey("web-0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev := nextEvent(t, s.Events()); ev.Type != EventStarted {
		t.Fatalf("expected started event, got %v", ev.Type)
	}

	infos := m.Snapshot()
	if len(infos) != 1 {
		t.Fatalf("expected one session, got %d", len(infos))
	}
	if infos[0].Key != testKey("web-0") {
		t.Fatalf("unexpected key %v", infos[0].Key)
	}
	if infos[0].State != StateActive {
		t.Fatalf("expected active state, got %v", infos[0].State)
	}

	m.StopAll()
	drainEvents(t, s.Events())
	if infos := m.Snapshot(); len(infos) != 0 {
		t.Fatalf("expected empty snapshot after stop, got %v", infos)
	}
}
