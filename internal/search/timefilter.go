// File: internal/search/timefilter.go
// Brief: Client-side time-window filtering for fetched log buffers. Lines
// carry timestamps either from the source (ObservedAt) or as a leading
// token in the text; untimestamped lines ride with the nearest preceding
// timestamped line so stack frames are never cut away from their parent.

package search

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order against the leading token (or the
// first two tokens joined) of a line. Zone-less stamps are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// TimeFilter drops lines observed before a cutoff instant. The zero
// TimeFilter keeps everything.
type TimeFilter struct {
	cutoff time.Time
}

// NewTimeFilter builds a filter keeping lines at or after now-since.
// A zero or negative since disables filtering.
func NewTimeFilter(since time.Duration, now time.Time) *TimeFilter {
	if since <= 0 {
		return &TimeFilter{}
	}
	return &TimeFilter{cutoff: now.Add(-since)}
}

// Apply returns the lines within the window, preserving order and the
// original line numbers. Lines without a recognizable timestamp inherit
// the keep/drop decision of the nearest preceding timestamped line;
// leading lines before any timestamp are retained. If no line in the
// buffer yields a timestamp the input is returned unchanged, so a source
// with bare-text logs is never silently emptied.
func (f *TimeFilter) Apply(lines []LogLine) []LogLine {
	if f == nil || f.cutoff.IsZero() {
		return lines
	}
	kept := make([]LogLine, 0, len(lines))
	keep := true
	sawTimestamp := false
	for _, ln := range lines {
		if ts, ok := lineTimestamp(ln); ok {
			sawTimestamp = true
			keep = !ts.Before(f.cutoff)
		}
		if keep {
			kept = append(kept, ln)
		}
	}
	if !sawTimestamp {
		return lines
	}
	return kept
}

func lineTimestamp(ln LogLine) (time.Time, bool) {
	if !ln.ObservedAt.IsZero() {
		return ln.ObservedAt, true
	}
	return parseLeadingTimestamp(ln.Text)
}

// parseLeadingTimestamp extracts a timestamp from the start of a log line.
// Date and time may be separated by a space, so the two-token candidate is
// tried before the single token; surrounding brackets are tolerated.
func parseLeadingTimestamp(text string) (time.Time, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return time.Time{}, false
	}
	candidates := make([]string, 0, 2)
	if len(fields) >= 2 {
		candidates = append(candidates, fields[0]+" "+fields[1])
	}
	candidates = append(candidates, fields[0])
	for _, cand := range candidates {
		cand = strings.Trim(cand, "[]")
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, cand); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
