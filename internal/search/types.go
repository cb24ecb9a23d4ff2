// File: internal/search/types.go
// Brief: Core data types shared by the log search engine, time filter, and
// multiline grouper. A LogLine is one retained container log line; a
// MatchBlock is one reported hit plus its surrounding context window.

package search

import (
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidPattern is returned (wrapped) by Search and by NewGrouper when a
// user-supplied expression does not compile. Callers test with errors.Is.
var ErrInvalidPattern = errors.New("invalid search pattern")

// Defaults applied by Search when the corresponding Request field is zero.
const (
	DefaultContextLines    = 3
	DefaultMaxMatches      = 50
	DefaultMaxLinesScanned = 1000
)

// LogLine is a single container log line after retrieval. Number is the
// 1-based position within the fetched window, not within the container's
// full history; filtering may leave gaps but never reorders. ObservedAt is
// the timestamp the kubelet attached when the line was requested with
// timestamps enabled, zero when the source did not annotate the line.
type LogLine struct {
	Number     int
	Text       string
	ObservedAt time.Time
}

// Request describes one search over a buffer of fetched lines.
//
// Pattern is compiled case-insensitively. MaxMatches and MaxLinesScanned
// fall back to the package defaults when zero. ContextLines is honored as
// given (zero means anchor-only blocks; negative is clamped to zero), so
// presentation layers apply DefaultContextLines themselves. GroupMultiline
// extends each match window across stack-trace continuation lines and
// absorbs later matches that land inside the extended window.
type Request struct {
	Pattern         string
	ContextLines    int
	MaxMatches      int
	MaxLinesScanned int
	Since           time.Duration
	GroupMultiline  bool
}

// MatchBlock is one reported match. AnchorLine is the number of the line
// that matched the pattern. Context holds the anchor plus its surrounding
// window in original order. GroupID is assigned in ascending report order
// and restarts at 1 for every Search call.
type MatchBlock struct {
	AnchorLine int
	Context    []LogLine
	GroupID    int
}

// Result carries the outcome of one Search. TotalMatches counts reported
// blocks, after grouping has absorbed any subsumed hits. Truncated is set
// when a bound cut the scan short: MaxMatches was reached while at least
// one further unabsorbed match remained, or MaxLinesScanned ran out before
// the buffer did.
type Result struct {
	Blocks       []MatchBlock
	TotalMatches int
	Truncated    bool
}
