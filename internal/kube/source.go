// File: internal/kube/source.go
// Brief: Container log retrieval. PodLogSource turns the kubelet log
// subresource into numbered LogLines, either as a bounded one-shot fetch
// or as a cancelable follow stream. It never retries on its own; callers
// decide whether a failure is worth another attempt.

package kube

import (
	"bufio"
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"

	"github.com/example/klex/internal/search"
)

const (
	logScannerInitial = 64 * 1024
	logScannerMax     = 1024 * 1024
)

// ErrSourceUnavailable marks any failure to open or keep a container log
// stream. Callers classify with errors.Is; the underlying apiserver
// message stays in the error text.
var ErrSourceUnavailable = errors.New("log source unavailable")

// PodLogSource reads container logs through the core API's log
// subresource. Safe for concurrent use; scanner buffers are pooled
// across calls.
type PodLogSource struct {
	client         kubernetes.Interface
	log            logr.Logger
	scannerBuffers sync.Pool
}

func NewPodLogSource(client kubernetes.Interface, logger logr.Logger) *PodLogSource {
	return &PodLogSource{
		client: client,
		log:    logger.WithName("logsource"),
		scannerBuffers: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, logScannerInitial)
				return &buf
			},
		},
	}
}

// FetchRecent returns up to maxLines of the container's most recent
// output, numbered from 1 in log order. The fetch asks the kubelet for
// timestamps, so every line carries ObservedAt and the raw prefix is
// stripped from the text. since > 0 narrows the request server-side;
// exact windowing stays with the caller.
func (s *PodLogSource) FetchRecent(ctx context.Context, namespace, pod, container string, maxLines int, since time.Duration) ([]search.LogLine, error) {
	logOpts := &corev1.PodLogOptions{
		Container:  container,
		Timestamps: true,
	}
	if maxLines > 0 {
		tail := int64(maxLines)
		logOpts.TailLines = &tail
	}
	if since > 0 {
		seconds := int64(since.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		logOpts.SinceSeconds = &seconds
	}

	stream, err := s.client.CoreV1().Pods(namespace).GetLogs(pod, logOpts).Stream(ctx)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "open logs for %s/%s[%s]: %v", namespace, pod, container, err)
	}
	defer func() { _ = stream.Close() }()

	scanner := bufio.NewScanner(stream)
	buf := s.getScannerBuffer()
	defer s.putScannerBuffer(buf)
	scanner.Buffer(buf, logScannerMax)

	lines := make([]search.LogLine, 0, 128)
	for scanner.Scan() {
		observed, text := splitObservedLine(scanner.Text())
		lines = append(lines, search.LogLine{Number: len(lines) + 1, Text: text, ObservedAt: observed})
		if maxLines > 0 && len(lines) >= maxLines {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrSourceUnavailable, "read logs for %s/%s[%s]: %v", namespace, pod, container, err)
	}
	s.log.V(1).Info("fetched log window", "namespace", namespace, "pod", pod, "container", container, "lines", len(lines))
	return lines, nil
}

// StreamLive opens a follow stream and forwards every line, numbered
// from 1, until the stream ends or ctx is canceled. An open failure is
// returned synchronously. The line channel closes when the stream ends;
// the terminal cause, nil for a clean end, follows on the buffered error
// channel.
func (s *PodLogSource) StreamLive(ctx context.Context, namespace, pod, container string) (<-chan search.LogLine, <-chan error, error) {
	logOpts := &corev1.PodLogOptions{
		Container: container,
		Follow:    true,
	}
	stream, err := s.client.CoreV1().Pods(namespace).GetLogs(pod, logOpts).Stream(ctx)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrSourceUnavailable, "open log stream for %s/%s[%s]: %v", namespace, pod, container, err)
	}
	s.log.V(1).Info("live stream opened", "namespace", namespace, "pod", pod, "container", container)

	lines := make(chan search.LogLine)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(lines)
		defer func() { _ = stream.Close() }()

		scanner := bufio.NewScanner(stream)
		buf := s.getScannerBuffer()
		defer s.putScannerBuffer(buf)
		scanner.Buffer(buf, logScannerMax)

		n := 0
		for scanner.Scan() {
			n++
			line := search.LogLine{Number: n, Text: scanner.Text()}
			select {
			case lines <- line:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil && !isContextErr(err) {
			errs <- errors.Wrapf(ErrSourceUnavailable, "log stream for %s/%s[%s] broke: %v", namespace, pod, container, err)
			return
		}
		s.log.V(1).Info("live stream drained", "namespace", namespace, "pod", pod, "container", container, "lines", n)
	}()
	return lines, errs, nil
}

// splitObservedLine peels the kubelet's RFC3339Nano prefix off a
// timestamped log line. Lines without a parseable prefix pass through
// untouched.
func splitObservedLine(raw string) (time.Time, string) {
	idx := strings.IndexByte(raw, ' ')
	if idx <= 0 {
		return time.Time{}, raw
	}
	ts, err := time.Parse(time.RFC3339Nano, raw[:idx])
	if err != nil {
		return time.Time{}, raw
	}
	return ts, raw[idx+1:]
}

// IsStartupPending reports whether a log stream failure only means the
// container has not started producing output yet. Followers use it to
// decide between backing off and giving up.
func IsStartupPending(err error) bool {
	if err == nil {
		return false
	}

	// Prefer structured status payloads when available, since k8s client
	// errors may be wrapped in a way that loses the original message in
	// err.Error().
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		apiStatus, ok := e.(apierrors.APIStatus)
		if !ok {
			continue
		}
		msg := strings.ToLower(apiStatus.Status().Message)
		if strings.Contains(msg, "is waiting to start") {
			return true
		}
		if strings.Contains(msg, "containercreating") || strings.Contains(msg, "podinitializing") {
			return true
		}
	}

	// Fallback: string matching against the fully formatted error. The
	// apiserver returns BadRequest with messages like:
	// "container \"X\" in pod \"Y\" is waiting to start: ContainerCreating"
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "is waiting to start") {
		return true
	}
	if strings.Contains(msg, "containercreating") || strings.Contains(msg, "podinitializing") {
		return true
	}
	return false
}

func (s *PodLogSource) getScannerBuffer() []byte {
	if buf, ok := s.scannerBuffers.Get().(*[]byte); ok && buf != nil {
		return (*buf)[:logScannerInitial]
	}
	return make([]byte, logScannerInitial)
}

func (s *PodLogSource) putScannerBuffer(buf []byte) {
	if buf == nil {
		return
	}
	if cap(buf) < logScannerInitial {
		buf = make([]byte, logScannerInitial)
	}
	buf = buf[:logScannerInitial]
	s.scannerBuffers.Put(&buf)
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
