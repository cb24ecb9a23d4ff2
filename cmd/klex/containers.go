// File: cmd/klex/containers.go
// Brief: CLI command wiring and implementation for 'containers'.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
)

func newContainersCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "containers POD",
		Aliases:       []string{"co"},
		Short:         "List a pod's containers with image, readiness, and state",
		Long:          "List the containers of a pod in manifest order, init containers first. Use this to find the -c value for logs, search, and follow.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContainers(cmd, args, opts)
		},
	}
	decorateCommandHelp(cmd, "Container Flags")
	return cmd
}

func runContainers(cmd *cobra.Command, args []string, opts *config.Options) error {
	logger, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	client, namespace, err := connect(opts)
	if err != nil {
		return err
	}
	discovery := kube.NewDiscovery(client.Clientset, client.Metrics, logger)
	infos, err := discovery.ListContainers(cmd.Context(), namespace, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintf(out, "Pod %s/%s has no containers.\n", namespace, args[0])
		return nil
	}
	renderContainerTable(out, infos)
	return nil
}

func renderContainerTable(w io.Writer, infos []kube.ContainerInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIMAGE\tTYPE\tREADY\tSTATE")
	for _, info := range infos {
		kind := "app"
		if info.Init {
			kind = "init"
		}
		fmt.Fprintln(tw, strings.Join([]string{
			info.Name,
			info.Image,
			kind,
			containerReadyText(info.Ready),
			containerStateText(info.State),
		}, "\t"))
	}
	_ = tw.Flush()
}

func containerReadyText(ready bool) string {
	if ready {
		if color.NoColor {
			return "yes"
		}
		return color.New(color.FgGreen).Sprint("yes")
	}
	return "no"
}

func containerStateText(state string) string {
	if state == "" {
		return "-"
	}
	if color.NoColor {
		return state
	}
	switch state {
	case "Running", "Completed":
		return color.New(color.FgGreen).Sprint(state)
	case "ContainerCreating", "PodInitializing", "Terminated":
		return color.New(color.FgYellow).Sprint(state)
	default:
		return color.New(color.FgHiRed).Sprint(state)
	}
}
