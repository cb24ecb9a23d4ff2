// File: internal/search/engine.go
// Brief: Regex search over a fetched log buffer with context windows,
// optional stack-trace grouping, and hard scan/report bounds.

package search

import (
	"fmt"
	"regexp"
	"time"
)

// CompilePattern compiles a user-supplied search pattern the way Search
// does: case-insensitively, rejecting expressions that do not compile as
// ErrInvalidPattern. Callers that want to highlight matches themselves
// reuse this so their view of "matches" never drifts from the engine's.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

// Engine runs bounded, deterministic searches over log buffers. It holds
// no per-search state; one Engine may serve concurrent callers.
type Engine struct {
	grouper *Grouper
	now     func() time.Time
}

// NewEngine returns an Engine using the given grouper for multiline
// extension. A nil grouper selects the built-in recognizers.
func NewEngine(grouper *Grouper) *Engine {
	if grouper == nil {
		grouper = &Grouper{continuations: defaultContinuations, maxFrames: DefaultMaxGroupFrames}
	}
	return &Engine{grouper: grouper, now: time.Now}
}

// Search scans lines in order and reports each pattern hit as a
// MatchBlock with its surrounding context window. The pattern is matched
// case-insensitively. With GroupMultiline set, windows are extended over
// continuation frames and later hits inside an earlier block's extended
// window are absorbed into that block instead of being reported again.
//
// The scan examines at most MaxLinesScanned lines and reports at most
// MaxMatches blocks; Result.Truncated records whether either bound cut
// the scan short of the buffer end. A pattern that does not compile is
// rejected as ErrInvalidPattern before any line is examined.
func (e *Engine) Search(lines []LogLine, req Request) (Result, error) {
	if req.ContextLines < 0 {
		req.ContextLines = 0
	}
	if req.MaxMatches <= 0 {
		req.MaxMatches = DefaultMaxMatches
	}
	if req.MaxLinesScanned <= 0 {
		req.MaxLinesScanned = DefaultMaxLinesScanned
	}

	re, err := CompilePattern(req.Pattern)
	if err != nil {
		return Result{}, err
	}

	if req.Since > 0 {
		lines = NewTimeFilter(req.Since, e.now()).Apply(lines)
	}

	var blocks []MatchBlock
	truncated := false
	absorbedThrough := -1
	scanned := 0
	for i := 0; i < len(lines); i++ {
		if scanned >= req.MaxLinesScanned {
			truncated = true
			break
		}
		scanned++
		if !re.MatchString(lines[i].Text) {
			continue
		}
		if req.GroupMultiline && i <= absorbedThrough {
			continue
		}
		if len(blocks) >= req.MaxMatches {
			// A further unabsorbed match exists past the report bound.
			truncated = true
			break
		}
		start := i - req.ContextLines
		if start < 0 {
			start = 0
		}
		end := i + req.ContextLines
		if end > len(lines)-1 {
			end = len(lines) - 1
		}
		if req.GroupMultiline {
			end = e.grouper.Extend(lines, i, end)
			absorbedThrough = end
		}
		window := make([]LogLine, end-start+1)
		copy(window, lines[start:end+1])
		blocks = append(blocks, MatchBlock{
			AnchorLine: lines[i].Number,
			Context:    window,
			GroupID:    len(blocks) + 1,
		})
	}
	return Result{Blocks: blocks, TotalMatches: len(blocks), Truncated: truncated}, nil
}
