// File: internal/webui/handlers.go
// Brief: JSON REST endpoints behind the klex dashboard.

package webui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/example/klex/internal/kube"
	"github.com/example/klex/internal/search"
)

// defaultLogLines bounds the raw-log view when the request does not say
// how much it wants.
const defaultLogLines = 100

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	namespaces, err := s.directory.ListNamespaces(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, map[string]any{
		"success":    true,
		"namespaces": namespaces,
		"current":    s.namespace,
	})
}

func (s *Server) handlePods(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	q := r.URL.Query()
	namespace, err := s.resolveNamespace(q.Get("namespace"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pods, err := s.directory.ListPods(r.Context(), namespace, q.Get("selector"), parseBool(q.Get("metrics")))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, map[string]any{
		"success":   true,
		"namespace": namespace,
		"count":     len(pods),
		"pods":      pods,
	})
}

// handlePodSubresource routes /api/pods/{pod}/{containers|logs|search}.
func (s *Server) handlePodSubresource(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/pods/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	pod := strings.TrimSpace(parts[0])
	resource := strings.TrimSpace(parts[1])
	if pod == "" {
		http.NotFound(w, r)
		return
	}
	namespace, err := s.resolveNamespace(r.URL.Query().Get("namespace"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch resource {
	case "containers":
		s.handleContainers(w, r, namespace, pod)
	case "logs":
		s.handleLogs(w, r, namespace, pod)
	case "search":
		s.handleSearch(w, r, namespace, pod)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleContainers(w http.ResponseWriter, r *http.Request, namespace, pod string) {
	containers, err := s.directory.ListContainers(r.Context(), namespace, pod)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, map[string]any{
		"success":    true,
		"namespace":  namespace,
		"pod":        pod,
		"containers": containers,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, namespace, pod string) {
	q := r.URL.Query()
	container, err := s.resolveContainer(r, namespace, pod, q.Get("container"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lines, err := s.source.FetchRecent(r.Context(), namespace, pod, container, parseInt(q.Get("lines"), defaultLogLines), since)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		texts = append(texts, line.Text)
	}
	writeJSON(w, map[string]any{
		"success":   true,
		"namespace": namespace,
		"pod":       pod,
		"container": container,
		"count":     len(texts),
		"lines":     texts,
	})
}

// matchResponse is the wire form of one search hit: the matching line
// number and its surrounding context, already clipped and grouped.
type matchResponse struct {
	LineNumber int      `json:"line_number"`
	Context    []string `json:"context"`
	GroupID    int      `json:"group_id"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, namespace, pod string) {
	q := r.URL.Query()
	pattern := strings.TrimSpace(q.Get("q"))
	if pattern == "" {
		writeError(w, http.StatusBadRequest, errors.New("query parameter q is required"))
		return
	}
	container, err := s.resolveContainer(r, namespace, pod, q.Get("container"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req := search.Request{
		Pattern:         pattern,
		ContextLines:    parseInt(q.Get("context"), search.DefaultContextLines),
		MaxMatches:      parseInt(q.Get("max_matches"), 0),
		MaxLinesScanned: parseInt(q.Get("max_lines"), 0),
		Since:           since,
		GroupMultiline:  parseBool(q.Get("group")),
	}
	fetchBound := req.MaxLinesScanned
	if fetchBound <= 0 {
		fetchBound = search.DefaultMaxLinesScanned
	}
	lines, err := s.source.FetchRecent(r.Context(), namespace, pod, container, fetchBound, since)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	result, err := s.engine.Search(lines, req)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	matches := make([]matchResponse, 0, len(result.Blocks))
	for _, block := range result.Blocks {
		texts := make([]string, 0, len(block.Context))
		for _, line := range block.Context {
			texts = append(texts, line.Text)
		}
		matches = append(matches, matchResponse{
			LineNumber: block.AnchorLine,
			Context:    texts,
			GroupID:    block.GroupID,
		})
	}
	writeJSON(w, map[string]any{
		"success":       true,
		"namespace":     namespace,
		"pod":           pod,
		"container":     container,
		"query":         pattern,
		"matches":       matches,
		"total_matches": result.TotalMatches,
		"truncated":     result.Truncated,
	})
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	type streamResponse struct {
		Namespace  string `json:"namespace"`
		Pod        string `json:"pod"`
		Container  string `json:"container"`
		Subscriber string `json:"subscriber"`
		State      string `json:"state"`
		Cursor     int    `json:"cursor"`
	}
	infos := s.streams.Snapshot()
	entries := make([]streamResponse, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, streamResponse{
			Namespace:  info.Key.Namespace,
			Pod:        info.Key.Pod,
			Container:  info.Key.Container,
			Subscriber: info.Key.Subscriber,
			State:      info.State.String(),
			Cursor:     info.Cursor,
		})
	}
	writeJSON(w, map[string]any{
		"success": true,
		"count":   len(entries),
		"streams": entries,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.stats != nil {
		snap := s.stats.Snapshot()
		resp["apiRequests"] = map[string]any{
			"count": snap.Count,
			"avgMs": snap.Avg().Milliseconds(),
			"maxMs": snap.Max.Milliseconds(),
		}
	}
	writeJSON(w, resp)
}

// resolveNamespace applies the server default when the request omits a
// namespace.
func (s *Server) resolveNamespace(requested string) (string, error) {
	namespace := strings.TrimSpace(requested)
	if namespace == "" {
		namespace = s.namespace
	}
	if namespace == "" {
		return "", errors.New("namespace is required")
	}
	return namespace, nil
}

// resolveContainer falls back to the pod's first container when the
// request does not name one.
func (s *Server) resolveContainer(r *http.Request, namespace, pod, requested string) (string, error) {
	container := strings.TrimSpace(requested)
	if container != "" {
		return container, nil
	}
	return s.directory.DefaultContainer(r.Context(), namespace, pod)
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidPattern):
		return http.StatusBadRequest
	case errors.Is(err, kube.ErrSourceUnavailable):
		return http.StatusBadGateway
	case apierrors.IsNotFound(err):
		return http.StatusNotFound
	case apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

func parseInt(v string, def int) int {
	text := strings.TrimSpace(v)
	if text == "" {
		return def
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return def
	}
	return n
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func parseSince(v string) (time.Duration, error) {
	text := strings.TrimSpace(v)
	if text == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid since duration %q", v)
	}
	if d < 0 {
		return 0, fmt.Errorf("since duration cannot be negative")
	}
	return d, nil
}
