// File: cmd/klex/follow.go
// Brief: CLI command wiring and implementation for 'follow': start one
// live-tail session and print its events until the stream ends or the
// user interrupts.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
	"github.com/example/klex/internal/stream"
)

func newFollowCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "follow POD",
		Aliases:       []string{"f"},
		Short:         "Follow a container's logs live",
		Long:          "Stream new log lines from one container as they are written. Lines arrive in order; press Ctrl+C to stop.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollow(cmd, args, opts)
		},
	}
	opts.BindFollowFlags(cmd.Flags())
	decorateCommandHelp(cmd, "Follow Flags")
	return cmd
}

func runFollow(cmd *cobra.Command, args []string, opts *config.Options) error {
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

	source := kube.NewPodLogSource(client.Clientset, logger)
	manager := stream.NewManager(source, 0, logger)
	key := stream.Key{
		Namespace:  namespace,
		Pod:        pod,
		Container:  container,
		Subscriber: fmt.Sprintf("cli-%d", os.Getpid()),
	}
	session, err := manager.Start(cmd.Context(), key)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Stop(key) }()
	return printSessionEvents(cmd.OutOrStdout(), cmd.ErrOrStderr(), session.Events())
}

// printSessionEvents drains a live session, rendering lines as they arrive.
// It returns the session's terminal error, nil for a clean stop.
func printSessionEvents(out, errOut io.Writer, events <-chan stream.Event) error {
	var cause error
	for ev := range events {
		switch ev.Type {
		case stream.EventStarted:
			fmt.Fprintf(errOut, "Following %s/%s[%s] (Ctrl+C to stop)\n", ev.Key.Namespace, ev.Key.Pod, ev.Key.Container)
		case stream.EventLine:
			printLogLine(out, ev.Line.Number, ev.Line.Text)
		case stream.EventError:
			cause = ev.Err
		case stream.EventStopped:
			fmt.Fprintln(errOut, "Stream ended.")
		}
	}
	return cause
}
