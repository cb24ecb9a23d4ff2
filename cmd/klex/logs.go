// File: cmd/klex/logs.go
// Brief: CLI command wiring and implementation for 'logs', plus the
// line renderer shared with 'follow'.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
)

var lineNumberStyle = color.New(color.Faint)

// levelStyles maps the first level token a line mentions to its color.
// Order is the precedence: a line saying both ERROR and INFO is an error.
var levelStyles = []struct {
	token string
	style *color.Color
}{
	{"ERROR", color.New(color.FgRed)},
	{"WARN", color.New(color.FgYellow)},
	{"INFO", color.New(color.FgGreen)},
	{"DEBUG", color.New(color.FgBlue)},
}

func newLogsCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "logs POD",
		Short:         "Print recent log lines from a pod's container",
		Long:          "Fetch the most recent log lines from one container, colored by the log level each line mentions. --tail -1 fetches everything the kubelet still holds.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, args, opts)
		},
	}
	opts.BindLogFlags(cmd.Flags())
	decorateCommandHelp(cmd, "Log Flags")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string, opts *config.Options) error {
	logger, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	client, namespace, err := connect(opts)
	if err != nil {
		return err
	}
	pod := args[0]
	discovery := kube.NewDiscovery(client.Clientset, client.Metrics, logger)
	container, err := resolveContainer(cmd, discovery, namespace, pod, opts.Container)
	if err != nil {
		return err
	}

	maxLines := int(opts.TailLines)
	if maxLines < 0 {
		maxLines = 0
	}
	source := kube.NewPodLogSource(client.Clientset, logger)
	lines, err := source.FetchRecent(cmd.Context(), namespace, pod, container, maxLines, opts.Since)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(lines) == 0 {
		fmt.Fprintf(out, "No log lines returned for %s/%s[%s].\n", namespace, pod, container)
		return nil
	}
	for _, line := range lines {
		printLogLine(out, line.Number, line.Text)
	}
	return nil
}

// printLogLine renders one line the way logs and follow both show them: a
// dim right-aligned line number, then the text colored by its level.
func printLogLine(w io.Writer, number int, text string) {
	if style := levelStyle(text); style != nil {
		text = style.Sprint(text)
	}
	fmt.Fprintf(w, "%s %s\n", lineNumberStyle.Sprintf("%6d", number), text)
}

func levelStyle(text string) *color.Color {
	upper := strings.ToUpper(text)
	for _, ls := range levelStyles {
		if strings.Contains(upper, ls.token) {
			return ls.style
		}
	}
	return nil
}
