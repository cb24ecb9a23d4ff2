// main.go bootstraps klex: it builds the root Cobra command, wires startup
// profiling, and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stopProfile := setupProfiling()
	defer stopProfile()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := config.NewOptions()
	cmd := &cobra.Command{
		Use:   "klex",
		Short: "Explore Kubernetes container logs: list, search, follow",
		Long: `klex finds the log line you are hunting for. It lists namespaces, pods, and
containers, fetches recent logs, searches them with context windows and
stack-trace grouping, follows containers live, and serves the same views as a
small web dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if namespaceHelpRequested(cmd) {
				return pflag.ErrHelp
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n\n", err)
		}
		return pflag.ErrHelp
	})
	opts.BindGlobalFlags(cmd.PersistentFlags())

	podsCmd := newPodsCommand(opts)
	namespacesCmd := newNamespacesCommand(opts)
	containersCmd := newContainersCommand(opts)
	logsCmd := newLogsCommand(opts)
	searchCmd := newSearchCommand(opts)
	followCmd := newFollowCommand(opts)
	webCmd := newWebCommand(opts)
	versionCmd := newVersionCommand()
	cmd.AddCommand(
		podsCmd,
		namespacesCmd,
		containersCmd,
		logsCmd,
		searchCmd,
		followCmd,
		webCmd,
		versionCmd,
		newCompletionCommand(cmd),
	)
	// Completion needs the parent link so inherited flags resolve.
	for _, sub := range []*cobra.Command{podsCmd, containersCmd, logsCmd, searchCmd, followCmd, webCmd} {
		registerNamespaceCompletion(sub, "namespace", opts)
	}
	for _, sub := range []*cobra.Command{containersCmd, logsCmd, searchCmd, followCmd} {
		registerPodCompletion(sub, opts)
	}
	cmd.Example = `  # List pods in the current namespace with CPU and memory usage
  klex pods --metrics

  # Show the last 200 lines from a pod's first container
  klex logs checkout-7d4b9 --tail 200

  # Find timeouts in the last hour, grouping stack traces with their error
  klex search checkout-7d4b9 'timeout|refused' --since 1h --group

  # Follow a specific container live
  klex follow checkout-7d4b9 -c app

  # Serve the browser dashboard
  klex web --listen :5000`
	decorateCommandHelp(cmd, "Global Flags")
	bindViper(cmd, podsCmd, namespacesCmd, containersCmd, logsCmd, searchCmd, followCmd, webCmd, versionCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("KLEX")
	v.AutomaticEnv()
	configFile := os.Getenv("KLEX_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			flagSets := []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()}
			for _, fs := range flagSets {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed {
						return
					}
					if !v.IsSet(f.Name) {
						return
					}
					val := fmt.Sprintf("%v", v.Get(f.Name))
					if val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "klex"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "klex"))
		add(filepath.Join(home, ".klex"))
	}
	return dirs
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s\nHint: the cluster did not answer in time. Verify network connectivity and the --context value.", err)
	case apierrors.IsUnauthorized(err):
		message = fmt.Sprintf("%s\nHint: kubeconfig credentials were rejected. Run 'kubectl config view' to confirm the active user.", err)
	case apierrors.IsForbidden(err):
		message = fmt.Sprintf("%s\nHint: missing Kubernetes permissions. klex needs get/list on pods and pods/log.", err)
	case apierrors.IsNotFound(err):
		message = fmt.Sprintf("%s\nHint: check the pod name and --namespace. 'klex pods' lists what is visible.", err)
	case kube.IsStartupPending(err):
		message = fmt.Sprintf("%s\nHint: the container has not started yet. Retry once 'klex containers POD' shows it running.", err)
	case errors.Is(err, kube.ErrSourceUnavailable):
		message = fmt.Sprintf("%s\nHint: the container may not be producing logs yet. 'klex containers POD' shows container states.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

func setupProfiling() func() {
	mode := strings.ToLower(os.Getenv("KLEX_PROFILE"))
	if mode != "startup" {
		return func() {}
	}
	ts := time.Now().UTC().Format("20060102-150405")
	cpuPath := fmt.Sprintf("klex-startup-%s.cpu.pprof", ts)
	cpuFile, err := os.Create(cpuPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to create CPU profile %s: %v\n", cpuPath, err)
		return func() {}
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to start CPU profile: %v\n", err)
		cpuFile.Close()
		return func() {}
	}
	fmt.Fprintf(os.Stderr, "KLEX_PROFILE=startup: writing CPU profile to %s\n", cpuPath)
	memPath := fmt.Sprintf("klex-startup-%s.mem.pprof", ts)
	return func() {
		pprof.StopCPUProfile()
		cpuFile.Close()
		memFile, err := os.Create(memPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to create heap profile %s: %v\n", memPath, err)
			return
		}
		defer memFile.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(memFile); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to write heap profile: %v\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "KLEX_PROFILE=startup: writing heap profile to %s\n", memPath)
	}
}
