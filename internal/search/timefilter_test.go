// File: internal/search/timefilter_test.go
// Brief: Time-window filtering: leading-token timestamp formats, decision
// inheritance for untimestamped lines, and the no-timestamp identity rule.

package search

import (
	"testing"
	"time"
)

var filterNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func keptNumbers(lines []LogLine) []int {
	nums := make([]int, len(lines))
	for i, ln := range lines {
		nums[i] = ln.Number
	}
	return nums
}

func TestTimeFilterLeadingTimestampFormats(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{name: "rfc3339 fresh", text: "2026-08-25T11:30:00Z INFO up", want: true},
		{name: "rfc3339 stale", text: "2026-08-25T09:00:00Z INFO up", want: false},
		{name: "rfc3339 fractional", text: "2026-08-25T11:30:00.123Z INFO up", want: true},
		{name: "space separated", text: "2026-08-25 11:30:00 INFO up", want: true},
		{name: "space separated stale", text: "2026-08-25 09:00:00 INFO up", want: false},
		{name: "slash separated", text: "2026/08/25 11:30:00 INFO up", want: true},
		{name: "bracketed", text: "[2026-08-25T11:30:00Z] INFO up", want: true},
		{name: "bracketed stale", text: "[2026-08-25 09:00:00] INFO up", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewTimeFilter(2*time.Hour, filterNow)
			got := f.Apply([]LogLine{{Number: 1, Text: tc.text}})
			if kept := len(got) == 1; kept != tc.want {
				t.Fatalf("expected kept=%v for %q, got %v", tc.want, tc.text, kept)
			}
		})
	}
}

func TestTimeFilterInheritsDecision(t *testing.T) {
	lines := makeLines(
		"prologue without a stamp",
		"2026-08-25T09:00:00Z ERROR stale",
		"\tat a.b(C.java:1)",
		"2026-08-25T11:30:00Z ERROR fresh",
		"\tat d.e(F.java:2)",
	)
	got := NewTimeFilter(2*time.Hour, filterNow).Apply(lines)
	want := []int{1, 4, 5}
	nums := keptNumbers(got)
	if len(nums) != len(want) {
		t.Fatalf("expected lines %v, got %v", want, nums)
	}
	for i := range nums {
		if nums[i] != want[i] {
			t.Fatalf("expected lines %v, got %v", want, nums)
		}
	}
}

func TestTimeFilterWithoutAnyTimestampIsIdentity(t *testing.T) {
	lines := makeLines("no stamps", "anywhere", "at all")
	got := NewTimeFilter(time.Minute, filterNow).Apply(lines)
	if len(got) != len(lines) {
		t.Fatalf("expected all %d lines kept, got %d", len(lines), len(got))
	}
}

func TestTimeFilterZeroSinceIsIdentity(t *testing.T) {
	lines := makeLines("2001-01-01T00:00:00Z ancient", "recent-ish")
	got := NewTimeFilter(0, filterNow).Apply(lines)
	if len(got) != len(lines) {
		t.Fatalf("expected all %d lines kept, got %d", len(lines), len(got))
	}
}

func TestTimeFilterObservedAtWins(t *testing.T) {
	// The source-provided timestamp overrides a misleading text prefix.
	lines := []LogLine{{
		Number:     1,
		Text:       "2026-08-25T09:00:00Z replayed line",
		ObservedAt: filterNow.Add(-10 * time.Minute),
	}}
	got := NewTimeFilter(2*time.Hour, filterNow).Apply(lines)
	if len(got) != 1 {
		t.Fatalf("expected ObservedAt to keep the line, got %d kept", len(got))
	}
}

func TestTimeFilterKeepsOriginalNumbers(t *testing.T) {
	lines := makeLines(
		"2026-08-25T09:00:00Z stale",
		"2026-08-25T11:00:00Z fresh",
		"2026-08-25T11:45:00Z fresher",
	)
	got := NewTimeFilter(90*time.Minute, filterNow).Apply(lines)
	nums := keptNumbers(got)
	if len(nums) != 2 || nums[0] != 2 || nums[1] != 3 {
		t.Fatalf("expected lines [2 3], got %v", nums)
	}
}
