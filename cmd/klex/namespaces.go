// File: cmd/klex/namespaces.go
// Brief: CLI command wiring and implementation for 'namespaces'.

package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
)

func newNamespacesCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "namespaces",
		Aliases:       []string{"ns"},
		Short:         "List namespaces, marking the current one",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNamespaces(cmd, opts)
		},
	}
	decorateCommandHelp(cmd, "Namespace Flags")
	return cmd
}

func runNamespaces(cmd *cobra.Command, opts *config.Options) error {
	logger, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	client, current, err := connect(opts)
	if err != nil {
		return err
	}
	discovery := kube.NewDiscovery(client.Clientset, client.Metrics, logger)
	names, err := discovery.ListNamespaces(cmd.Context())
	if err != nil {
		return err
	}
	renderNamespaceList(cmd.OutOrStdout(), names, current)
	return nil
}

func renderNamespaceList(w io.Writer, names []string, current string) {
	fmt.Fprintln(w, color.New(color.FgBlue).Sprint("Available namespaces:"))
	for _, name := range names {
		if name == current {
			fmt.Fprintf(w, "  • %s (current)\n", color.New(color.FgGreen).Sprint(name))
			continue
		}
		fmt.Fprintf(w, "  • %s\n", name)
	}
}
