// File: internal/stream/manager.go
// Brief: Registry and lifecycle for live-tail sessions. One worker
// goroutine per session reads the line source and feeds the session's
// event channel; start and stop for a key are serialized by the registry
// mutex, and a session leaves the registry only after it has stopped.

package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"

	"github.com/example/klex/internal/search"
)

// DefaultQueueSize bounds a session's event channel: deep enough to ride
// out a bursty producer, shallow enough that a stalled consumer exerts
// backpressure quickly.
const DefaultQueueSize = 128

// Source opens live log streams. An open failure is returned
// synchronously. After a successful open the line channel carries lines
// in order until the stream ends; the terminal cause (nil on a clean end)
// is then available on the buffered error channel. Implementations stop
// producing when ctx ends and never retry on their own: retry policy
// belongs to the caller.
type Source interface {
	StreamLive(ctx context.Context, namespace, pod, container string) (<-chan search.LogLine, <-chan error, error)
}

// Manager owns every live-tail session. All lifecycle transitions go
// through it, so a start racing a stop can never leave a worker feeding a
// session the registry has forgotten.
type Manager struct {
	source Source
	queue  int
	log    logr.Logger

	mu       sync.Mutex
	sessions map[Key]*Session
}

// NewManager builds a Manager reading from source. queueSize <= 0 selects
// DefaultQueueSize.
func NewManager(source Source, queueSize int, log logr.Logger) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		source:   source,
		queue:    queueSize,
		log:      log.WithName("stream"),
		sessions: make(map[Key]*Session),
	}
}

// Start returns the session for key, creating one when needed. An
// existing Starting or Active session is returned as-is, so repeated
// starts are cheap and never spawn a second worker. A session already on
// its way down is left to finish and replaced with a fresh one; its
// worker's deregistration is identity-guarded and cannot remove the
// replacement. Registration and worker launch happen under one lock
// acquisition. The session runs until Stop is called or ctx ends.
func (m *Manager) Start(ctx context.Context, key Key) (*Session, error) {
	if key.Pod == "" || key.Container == "" {
		return nil, fmt.Errorf("incomplete stream key %q", key.String())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[key]; ok {
		switch existing.State() {
		case StateStarting, StateActive:
			return existing, nil
		}
	}
	streamCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		key:    key,
		cancel: cancel,
		events: make(chan Event, m.queue),
		state:  StateStarting,
	}
	m.sessions[key] = s
	go m.run(streamCtx, s)
	m.log.V(1).Info("session starting", "key", key.String())
	return s, nil
}

// Stop requests shutdown of the session for key. Unknown or already
// stopped keys are a success: the desired state already holds. The worker
// observes the cancellation at its next read or enqueue suspension point,
// emits the terminal events, and deregisters itself.
func (m *Manager) Stop(key Key) error {
	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	s.beginStop()
	return nil
}

// StopAll requests shutdown of every session and returns without
// waiting; each consumer observes its own EventStopped.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.beginStop()
	}
}

// Keys lists the registered session keys in stable order.
func (m *Manager) Keys() []Key {
	m.mu.Lock()
	keys := make([]Key, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// SessionInfo is a point-in-time view of one tracked session.
type SessionInfo struct {
	Key    Key
	State  State
	Cursor int
}

// Snapshot reports every tracked session in stable key order. The view is
// advisory: a session may transition the moment the lock is released.
func (m *Manager) Snapshot() []SessionInfo {
	m.mu.Lock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, SessionInfo{Key: s.Key(), State: s.State(), Cursor: s.Cursor()})
	}
	m.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key.String() < infos[j].Key.String() })
	return infos
}

// run is the session worker. The source acknowledging the open moves the
// session to Active; every line is then forwarded in arrival order, with
// the cursor advancing only after the line is actually on the channel.
func (m *Manager) run(ctx context.Context, s *Session) {
	lines, errs, err := m.source.StreamLive(ctx, s.key.Namespace, s.key.Pod, s.key.Container)
	if err != nil {
		m.finish(s, err)
		return
	}
	s.setState(StateActive)
	if !s.send(ctx, Event{Type: EventStarted, Key: s.key}) {
		m.finish(s, nil)
		return
	}
	for line := range lines {
		if !s.send(ctx, Event{Type: EventLine, Key: s.key, Line: line}) {
			m.finish(s, nil)
			return
		}
		s.advance(line.Number)
	}
	m.finish(s, <-errs)
}

// finish runs the terminal sequence exactly once per worker: Stopping,
// EventError for a real cause, Stopped, deregistration, EventStopped,
// channel close. Cancellation is a clean stop, not an error. The terminal
// sends block like any other delivery, which is why consumers drain the
// channel until it closes.
func (m *Manager) finish(s *Session, cause error) {
	s.setState(StateStopping)
	if cause != nil && !isContextErr(cause) {
		m.log.Error(cause, "log stream failed", "key", s.key.String())
		s.events <- Event{Type: EventError, Key: s.key, Err: cause}
	}
	s.setState(StateStopped)
	m.remove(s)
	s.events <- Event{Type: EventStopped, Key: s.key}
	close(s.events)
	m.log.V(1).Info("session stopped", "key", s.key.String(), "cursor", s.Cursor())
}

// remove deletes s from the registry unless the slot was already handed
// to a replacement session started while s was stopping.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.key]; ok && cur == s {
		delete(m.sessions, s.key)
	}
	m.mu.Unlock()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
