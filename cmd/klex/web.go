// File: cmd/klex/web.go
// Brief: CLI command wiring for 'web', the browser dashboard.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
	"github.com/example/klex/internal/search"
	"github.com/example/klex/internal/stream"
	"github.com/example/klex/internal/webui"
)

func newWebCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "web",
		Short:         "Serve the klex dashboard in a browser",
		Long:          "Start a local web server exposing the pod directory, log search, and live tailing over HTTP and WebSocket.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeb(cmd, opts)
		},
	}
	opts.BindWebFlags(cmd.Flags())
	decorateCommandHelp(cmd, "Web Flags")
	return cmd
}

func runWeb(cmd *cobra.Command, opts *config.Options) error {
	logger, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	client, namespace, err := connect(opts)
	if err != nil {
		return err
	}
	grouper, err := search.NewGrouper(opts.StackPatterns, 0)
	if err != nil {
		return err
	}

	discovery := kube.NewDiscovery(client.Clientset, client.Metrics, logger)
	source := kube.NewPodLogSource(client.Clientset, logger)
	manager := stream.NewManager(source, 0, logger)
	server := webui.New(opts.ListenAddr, discovery, source, manager, logger.WithName("webui"),
		webui.WithDefaultNamespace(namespace),
		webui.WithClusterInfo(describeClusterLabel(client, opts.Context)),
		webui.WithAPIStats(client.APIStats),
		webui.WithEngine(search.NewEngine(grouper)),
	)
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving the klex dashboard on %s\n", opts.ListenAddr)
	return server.Run(cmd.Context())
}

func describeClusterLabel(client *kube.Client, contextName string) string {
	name := strings.TrimSpace(contextName)
	if name == "" {
		name = "current context"
	}
	host := ""
	if client != nil && client.RESTConfig != nil {
		host = strings.TrimSpace(client.RESTConfig.Host)
	}
	if host == "" {
		return fmt.Sprintf("Context: %s", name)
	}
	return fmt.Sprintf("Context: %s · API: %s", name, host)
}
