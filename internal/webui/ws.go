// File: internal/webui/ws.go
// Brief: WebSocket endpoint carrying live-tail frames to the dashboard.
// Each connection owns the sessions it starts; closing the socket stops
// them all.

package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/example/klex/internal/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsCommand is what the dashboard sends: start or stop tailing one
// container. An omitted namespace falls back to the server default; an
// omitted container on start is resolved to the pod's first container.
type wsCommand struct {
	Action    string `json:"action"`
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container"`
}

// wsFrame is what the dashboard receives. Type mirrors the session event
// names: started, line, error, stopped.
type wsFrame struct {
	Type       string `json:"type"`
	Namespace  string `json:"namespace,omitempty"`
	Pod        string `json:"pod,omitempty"`
	Container  string `json:"container,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
}

func frameFor(ev stream.Event) wsFrame {
	frame := wsFrame{
		Type:      ev.Type.String(),
		Namespace: ev.Key.Namespace,
		Pod:       ev.Key.Pod,
		Container: ev.Key.Container,
	}
	switch ev.Type {
	case stream.EventLine:
		frame.LineNumber = ev.Line.Number
		frame.Text = ev.Line.Text
	case stream.EventError:
		if ev.Err != nil {
			frame.Error = ev.Err.Error()
		}
	}
	return frame
}

// connSeq hands each connection a distinct subscriber identity so two
// dashboard tabs tailing the same container get independent sessions.
var connSeq atomic.Uint64

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(err, "upgrade dashboard websocket")
		return
	}
	client := newWSClient(conn, s.logger)
	go client.writeLoop()

	subscriber := fmt.Sprintf("ws-%d", connSeq.Add(1))
	owned := make(map[stream.Key]struct{})
	defer func() {
		for key := range owned {
			_ = s.streams.Stop(key)
		}
		client.Close()
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		var cmd wsCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			client.sendFrame(wsFrame{Type: "error", Error: fmt.Sprintf("bad command: %v", err)})
			continue
		}
		s.dispatchCommand(r.Context(), client, subscriber, cmd, owned)
	}
}

// dispatchCommand runs on the connection's read loop, so owned needs no
// locking.
func (s *Server) dispatchCommand(ctx context.Context, client *wsClient, subscriber string, cmd wsCommand, owned map[stream.Key]struct{}) {
	pod := strings.TrimSpace(cmd.Pod)
	container := strings.TrimSpace(cmd.Container)
	switch cmd.Action {
	case "start", "stop":
	default:
		client.sendFrame(wsFrame{Type: "error", Error: fmt.Sprintf("unknown action %q", cmd.Action)})
		return
	}
	namespace, err := s.resolveNamespace(cmd.Namespace)
	if err != nil {
		client.sendFrame(wsFrame{Type: "error", Pod: cmd.Pod, Error: err.Error()})
		return
	}
	switch cmd.Action {
	case "start":
		if container == "" && pod != "" {
			resolved, err := s.directory.DefaultContainer(ctx, namespace, pod)
			if err != nil {
				client.sendFrame(wsFrame{Type: "error", Namespace: namespace, Pod: pod, Error: err.Error()})
				return
			}
			container = resolved
		}
		key := stream.Key{Namespace: namespace, Pod: pod, Container: container, Subscriber: subscriber}
		if _, ok := owned[key]; ok {
			client.sendFrame(wsFrame{Type: "error", Namespace: namespace, Pod: pod, Container: container, Error: "already streaming"})
			return
		}
		sess, err := s.streams.Start(ctx, key)
		if err != nil {
			client.sendFrame(wsFrame{Type: "error", Namespace: namespace, Pod: pod, Container: container, Error: err.Error()})
			return
		}
		owned[key] = struct{}{}
		go s.forward(sess, client)
	case "stop":
		// An empty container stops every stream this connection has
		// for the pod, covering starts whose container was defaulted.
		for key := range owned {
			if key.Namespace != namespace || key.Pod != pod {
				continue
			}
			if container != "" && key.Container != container {
				continue
			}
			delete(owned, key)
			_ = s.streams.Stop(key)
		}
	}
}

// forward drains a session into the client. It always runs to channel
// close so the session worker is never blocked by a dead client.
func (s *Server) forward(sess *stream.Session, client *wsClient) {
	for ev := range sess.Events() {
		client.sendFrame(frameFor(ev))
	}
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	logger logr.Logger

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newWSClient(conn *websocket.Conn, logger logr.Logger) *wsClient {
	return &wsClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// sendFrame queues a frame for the write loop. A full queue means the
// reader has stalled; the connection is closed rather than silently
// skipping lines, and the dashboard reconnects.
func (c *wsClient) sendFrame(frame wsFrame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error(err, "encode dashboard frame")
		return false
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.send <- payload:
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
		c.logger.Info("dropping dashboard client for slow reader")
		c.Close()
		return false
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
