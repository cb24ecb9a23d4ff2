// File: cmd/klex/search.go
// Brief: CLI command wiring and implementation for 'search': fetch a
// recent-log window, run the bounded regex search, and render match
// panels with context and highlights.

package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
	"github.com/example/klex/internal/search"
	"github.com/example/klex/internal/ui"
)

const (
	defaultPanelWidth = 80
	maxPanelWidth     = 100
	minPanelWidth     = 40
)

var (
	ruleStyle    = color.New(color.FgBlue)
	anchorStyle  = color.New(color.FgYellow)
	matchStyle   = color.New(color.BgYellow, color.FgBlack)
	foundStyle   = color.New(color.FgGreen)
	partialStyle = color.New(color.FgYellow)
)

func newSearchCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search POD PATTERN",
		Short: "Search recent pod logs with context windows",
		Long: `Fetch a window of recent log lines from one container and search it with a
case-insensitive regular expression. Each match is shown with surrounding
context; --group extends matches across stack-trace continuation lines and
folds later hits inside the same trace into one block.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, opts)
		},
	}
	opts.BindSearchFlags(cmd.Flags())
	decorateCommandHelp(cmd, "Search Flags")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string, opts *config.Options) error {
	logger, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	pod, pattern := args[0], args[1]

	// Reject a bad pattern before any cluster round trip.
	highlight, err := search.CompilePattern(pattern)
	if err != nil {
		return err
	}
	grouper, err := search.NewGrouper(opts.StackPatterns, 0)
	if err != nil {
		return err
	}
	engine := search.NewEngine(grouper)

	client, namespace, err := connect(opts)
	if err != nil {
		return err
	}
	discovery := kube.NewDiscovery(client.Clientset, client.Metrics, logger)
	container, err := resolveContainer(cmd, discovery, namespace, pod, opts.Container)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Searching %s/%s[%s] for %q\n", namespace, pod, container, pattern)
	var stopSpinner func()
	if ui.IsTerminalWriter(errOut) {
		stopSpinner = ui.StartSpinner(errOut, "fetching logs")
	}
	source := kube.NewPodLogSource(client.Clientset, logger)
	lines, err := source.FetchRecent(cmd.Context(), namespace, pod, container, opts.MaxLines, opts.Since)
	if stopSpinner != nil {
		stopSpinner()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(errOut, "Scanned %d lines\n", len(lines))

	result, err := engine.Search(lines, opts.SearchRequest(pattern))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.TotalMatches == 0 {
		fmt.Fprintln(out, partialStyle.Sprintf("No matches for %q", pattern))
		return nil
	}
	fmt.Fprintf(out, "%s\n\n", foundStyle.Sprintf("Found %d matches:", result.TotalMatches))
	renderMatches(out, result, highlight, panelWidth(out))
	if result.Truncated {
		fmt.Fprintln(out, partialStyle.Sprint("Results are partial: a scan bound was hit. Raise --max-lines or --max-matches to widen the search."))
	}
	return nil
}

// renderMatches prints one panel per match block: a title rule naming the
// match and its anchor line, then the context window with the anchor marked
// and every pattern occurrence highlighted.
func renderMatches(w io.Writer, result search.Result, highlight *regexp.Regexp, width int) {
	for _, block := range result.Blocks {
		title := fmt.Sprintf(" Match %d (line %d) ", block.GroupID, block.AnchorLine)
		fill := width - 2 - len([]rune(title))
		if fill < 3 {
			fill = 3
		}
		fmt.Fprintf(w, "%s%s%s\n", ruleStyle.Sprint("──"), title, ruleStyle.Sprint(strings.Repeat("─", fill)))
		for _, line := range block.Context {
			text := line.Text
			if highlight != nil && !color.NoColor {
				text = highlight.ReplaceAllStringFunc(text, func(m string) string {
					return matchStyle.Sprint(m)
				})
			}
			marker := " "
			if line.Number == block.AnchorLine {
				marker = anchorStyle.Sprint(">")
			}
			fmt.Fprintf(w, "%s %s %s\n", marker, lineNumberStyle.Sprintf("%6d |", line.Number), text)
		}
		fmt.Fprintln(w)
	}
}

// panelWidth sizes the title rules to the terminal, within sane bounds, and
// falls back to a fixed width when stdout is not a terminal.
func panelWidth(w io.Writer) int {
	width, ok := ui.TerminalWidth(w)
	if !ok {
		return defaultPanelWidth
	}
	if width > maxPanelWidth {
		return maxPanelWidth
	}
	if width < minPanelWidth {
		return minPanelWidth
	}
	return width
}
