// Package webui hosts the klex dashboard: a small HTTP server exposing
// the pod directory, recent-log search, and live tailing over JSON REST
// endpoints plus a WebSocket, with an embedded single-page UI on top.
package webui

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/example/klex/internal/kube"
	"github.com/example/klex/internal/search"
	"github.com/example/klex/internal/stream"
)

// Directory answers the dashboard's "what can I look at" questions.
// *kube.Discovery satisfies it.
type Directory interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	ListPods(ctx context.Context, namespace, selector string, withUsage bool) ([]kube.PodSummary, error)
	ListContainers(ctx context.Context, namespace, pod string) ([]kube.ContainerInfo, error)
	DefaultContainer(ctx context.Context, namespace, pod string) (string, error)
}

// LineSource fetches recent log lines for the search and raw-log views.
// *kube.PodLogSource satisfies it.
type LineSource interface {
	FetchRecent(ctx context.Context, namespace, pod, container string, maxLines int, since time.Duration) ([]search.LogLine, error)
}

// Option configures the dashboard server.
type Option func(*Server)

// WithDefaultNamespace sets the namespace used when a request omits one.
func WithDefaultNamespace(namespace string) Option {
	return func(s *Server) {
		if s == nil {
			return
		}
		s.namespace = namespace
	}
}

// WithClusterInfo sets the contextual subtitle rendered on the dashboard.
func WithClusterInfo(info string) Option {
	return func(s *Server) {
		if s == nil {
			return
		}
		s.clusterInfo = info
	}
}

// WithAPIStats wires apiserver request telemetry into /healthz.
func WithAPIStats(stats *kube.RequestStats) Option {
	return func(s *Server) {
		if s == nil {
			return
		}
		s.stats = stats
	}
}

// WithEngine overrides the search engine, typically to install custom
// stack continuation patterns.
func WithEngine(engine *search.Engine) Option {
	return func(s *Server) {
		if s == nil || engine == nil {
			return
		}
		s.engine = engine
	}
}

// Server exposes the klex dashboard over HTTP and WebSocket.
type Server struct {
	addr        string
	directory   Directory
	source      LineSource
	streams     *stream.Manager
	engine      *search.Engine
	logger      logr.Logger
	namespace   string
	clusterInfo string
	stats       *kube.RequestStats
	upgrader    websocket.Upgrader
	page        *template.Template
}

func New(addr string, directory Directory, source LineSource, streams *stream.Manager, logger logr.Logger, opts ...Option) *Server {
	server := &Server{
		addr:      addr,
		directory: directory,
		source:    source,
		streams:   streams,
		engine:    search.NewEngine(nil),
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	server.page = template.Must(template.New("dashboard").Parse(dashboardHTML))
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	return server
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/namespaces", s.handleNamespaces)
	mux.HandleFunc("/api/pods", s.handlePods)
	mux.HandleFunc("/api/pods/", s.handlePodSubresource)
	mux.HandleFunc("/api/streams", s.handleStreams)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Run serves until ctx ends, then drains every live-tail session and
// shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.streams.StopAll()
	}()
	s.logger.V(1).Info("dashboard listener ready", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type pageData struct {
	Title       string
	ClusterInfo string
	Namespace   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf bytes.Buffer
	err := s.page.Execute(&buf, pageData{
		Title:       "klex Log Explorer",
		ClusterInfo: s.clusterInfo,
		Namespace:   s.namespace,
	})
	if err != nil {
		s.logger.Error(err, "render dashboard template")
		http.Error(w, "template render failed", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(buf.Bytes())
}

//go:embed templates/dashboard.html
var dashboardHTML string
