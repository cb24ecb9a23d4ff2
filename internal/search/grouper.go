// File: internal/search/grouper.go
// Brief: Stack-trace aware window extension. Given a match and its base
// context window, the grouper walks forward over continuation frames
// (indented "at" lines, "Caused by:", frame elisions, Python traceback
// bodies) so a multi-line failure is reported as one block.

package search

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxGroupFrames caps how many lines a single block may grow past
// its base window, keeping one pathological trace from swallowing the
// whole buffer.
const DefaultMaxGroupFrames = 256

// defaultContinuations recognize the trace shapes the tool sees in
// practice: JVM frames and their chained-cause markers, plus CPython
// traceback bodies. Blank-line handling is structural (see Extend), not a
// pattern.
var defaultContinuations = []*regexp.Regexp{
	regexp.MustCompile(`^\s+at\s`),
	regexp.MustCompile(`^\s*Caused by:`),
	regexp.MustCompile(`^\s*\.\.\. \d+ more`),
	regexp.MustCompile(`^\s+File "`),
	regexp.MustCompile(`^\s+Suppressed:`),
}

// Grouper extends match windows across continuation frames.
type Grouper struct {
	continuations []*regexp.Regexp
	maxFrames     int
}

// NewGrouper compiles the given continuation patterns. An empty pattern
// list selects the built-in recognizers; maxFrames <= 0 selects
// DefaultMaxGroupFrames. A pattern that does not compile is reported as
// ErrInvalidPattern.
func NewGrouper(patterns []string, maxFrames int) (*Grouper, error) {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxGroupFrames
	}
	g := &Grouper{maxFrames: maxFrames}
	if len(patterns) == 0 {
		g.continuations = defaultContinuations
		return g, nil
	}
	g.continuations = make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		g.continuations = append(g.continuations, re)
	}
	return g, nil
}

// Extend walks forward from baseEnd and returns the new inclusive window
// end. Continuation frames are included one at a time; a blank line is
// included only when the line directly after it is itself a continuation
// frame. The first other line stops the walk and stays outside the
// window. Growth past baseEnd is capped at maxFrames lines.
func (g *Grouper) Extend(lines []LogLine, matchIdx, baseEnd int) int {
	if len(lines) == 0 {
		return baseEnd
	}
	last := len(lines) - 1
	if baseEnd < matchIdx {
		baseEnd = matchIdx
	}
	if baseEnd >= last {
		return last
	}
	end := baseEnd
	budget := g.maxFrames
	for i := baseEnd + 1; i <= last && budget > 0; i++ {
		text := lines[i].Text
		if g.isContinuation(text) {
			end = i
			budget--
			continue
		}
		if strings.TrimSpace(text) == "" && i < last && g.isContinuation(lines[i+1].Text) {
			end = i
			budget--
			continue
		}
		break
	}
	return end
}

func (g *Grouper) isContinuation(text string) bool {
	for _, re := range g.continuations {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
