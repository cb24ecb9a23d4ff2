// File: cmd/klex/runtime.go
// Brief: Per-run setup shared by every subcommand: option validation,
// logger construction, klog routing, color resolution, and the client
// bundle plus effective namespace.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
	"github.com/example/klex/internal/logging"
	"github.com/example/klex/internal/ui"
)

// newRuntime validates the options and prepares logging and color output
// for a command run. It returns the logger commands hand to their
// collaborators.
func newRuntime(cmd *cobra.Command, opts *config.Options) (logr.Logger, error) {
	if err := opts.Validate(); err != nil {
		return logr.Logger{}, err
	}
	logger, err := logging.New(opts.LogLevel)
	if err != nil {
		return logr.Logger{}, err
	}
	ctrl.SetLogger(logger)
	routeKubeLogs(logger, opts.LogLevel, opts.KubeLogLevel)
	applyColorMode(opts.ColorMode, cmd.OutOrStdout())
	return logger, nil
}

// connect builds the client bundle and resolves the namespace the command
// operates in: --namespace, then the kubeconfig context's namespace, then
// "default".
func connect(opts *config.Options) (*kube.Client, string, error) {
	client, err := kube.New(opts.KubeConfigPath, opts.Context)
	if err != nil {
		return nil, "", err
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = client.Namespace
	}
	if namespace == "" {
		namespace = "default"
	}
	return client, namespace, nil
}

// resolveContainer picks the container a log command reads: the -c value
// when given, otherwise the pod's first container, with a note on stderr so
// users know which one they are looking at.
func resolveContainer(cmd *cobra.Command, discovery *kube.Discovery, namespace, pod, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	container, err := discovery.DefaultContainer(cmd.Context(), namespace, pod)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Defaulting to container %s\n", container)
	return container, nil
}

// routeKubeLogs points client-go's klog output at the structured logger
// and sets its verbosity. Debug log level implies verbose client traffic
// unless an explicit --kube-log-level was given.
func routeKubeLogs(logger logr.Logger, logLevel string, verbosity int) {
	if verbosity == 0 && logLevel == "debug" {
		verbosity = 6
	}
	klog.SetLogger(logger.WithName("kube"))
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("v", strconv.Itoa(verbosity))
}

// applyColorMode resolves --color for this process. auto follows the
// terminal and the NO_COLOR convention; always and never force it.
func applyColorMode(mode string, out io.Writer) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		if os.Getenv("NO_COLOR") != "" {
			color.NoColor = true
			return
		}
		color.NoColor = !ui.IsTerminalWriter(out)
	}
}
