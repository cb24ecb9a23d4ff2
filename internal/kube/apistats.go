// File: internal/kube/apistats.go
// Brief: API request latency telemetry. A transport wrapper counts every
// round trip to the apiserver; the dashboard's health endpoint reports
// the snapshot.

package kube

import (
	"net/http"
	"sync"
	"time"

	"k8s.io/client-go/rest"
)

// RequestStats accumulates apiserver round-trip timings.
type RequestStats struct {
	mu    sync.Mutex
	count int
	total time.Duration
	max   time.Duration
}

// RequestSnapshot is a point-in-time copy of the accumulated counters.
type RequestSnapshot struct {
	Count int
	Total time.Duration
	Max   time.Duration
}

func NewRequestStats() *RequestStats {
	return &RequestStats{}
}

func (s *RequestStats) observe(d time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.count++
	s.total += d
	if d > s.max {
		s.max = d
	}
	s.mu.Unlock()
}

func (s *RequestStats) Snapshot() RequestSnapshot {
	if s == nil {
		return RequestSnapshot{}
	}
	s.mu.Lock()
	out := RequestSnapshot{
		Count: s.count,
		Total: s.total,
		Max:   s.max,
	}
	s.mu.Unlock()
	return out
}

func (m RequestSnapshot) Avg() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return time.Duration(int64(m.Total) / int64(m.Count))
}

type statsRoundTripper struct {
	base  http.RoundTripper
	stats *RequestStats
}

func (rt *statsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rt.base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)
	if rt.stats != nil {
		rt.stats.observe(time.Since(start))
	}
	return resp, err
}

// AttachAPITelemetry wraps the REST config transport so every apiserver
// request lands in stats.
func AttachAPITelemetry(cfg *rest.Config, stats *RequestStats) {
	if cfg == nil || stats == nil {
		return
	}
	wrap := cfg.WrapTransport
	cfg.WrapTransport = func(rt http.RoundTripper) http.RoundTripper {
		if wrap != nil {
			rt = wrap(rt)
		}
		return &statsRoundTripper{base: rt, stats: stats}
	}
}
