// File: internal/stream/session.go
// Brief: Live-tail session model: keys, lifecycle states, events, and the
// Session handle consumers read from. State changes flow one way,
// Starting -> Active -> Stopping -> Stopped, and only the manager applies
// them.

package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/klex/internal/search"
)

// Key identifies one live-tail session. Subscriber separates independent
// viewers of the same container so stopping one does not stop the others.
type Key struct {
	Namespace  string
	Pod        string
	Container  string
	Subscriber string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s[%s]@%s", k.Namespace, k.Pod, k.Container, k.Subscriber)
}

// State is a session lifecycle phase. Transitions are monotonic; a session
// never moves backwards and Stopped is terminal.
type State int

const (
	StateStarting State = iota
	StateActive
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType tags an Event. The string forms double as the wire names used
// by the dashboard protocol.
type EventType int

const (
	EventStarted EventType = iota
	EventLine
	EventError
	EventStopped
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventLine:
		return "line"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one item on a session's event channel. Line is set for
// EventLine, Err for EventError; Key is always set.
type Event struct {
	Type EventType
	Key  Key
	Line search.LogLine
	Err  error
}

// Session is a consumer's handle on one live tail. Events are delivered
// in source order on a bounded channel; a full channel blocks the
// producer rather than dropping. The channel is closed after the terminal
// EventStopped, so consumers must drain until close or the worker stays
// parked on its final sends.
type Session struct {
	key    Key
	cancel func()
	events chan Event

	mu     sync.Mutex
	state  State
	cursor int
}

func (s *Session) Key() Key { return s.key }

// Events returns the session's event channel. The same channel is handed
// to every caller; a session supports one logical consumer.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor reports the number of the last line handed to the consumer
// channel. It advances only after a successful delivery, so after a stop
// it names exactly how far the consumer could have read.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// setState advances the lifecycle; regressions are ignored so a racing
// stop cannot pull an already-stopped session back to life.
func (s *Session) setState(next State) {
	s.mu.Lock()
	if next > s.state {
		s.state = next
	}
	s.mu.Unlock()
}

func (s *Session) advance(lineNumber int) {
	s.mu.Lock()
	s.cursor = lineNumber
	s.mu.Unlock()
}

// beginStop requests worker shutdown. Safe to call any number of times in
// any state.
func (s *Session) beginStop() {
	s.setState(StateStopping)
	s.cancel()
}

// send delivers ev in order, blocking while the queue is full. It gives
// up only when the session context ends, which is the worker's enqueue
// side cancellation poll.
func (s *Session) send(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
