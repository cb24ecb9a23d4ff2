// File: cmd/klex/pods.go
// Brief: CLI command wiring and implementation for 'pods'.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
)

// maxNamespaceFanout bounds concurrent pod list calls when --all-namespaces
// walks the cluster.
const maxNamespaceFanout = 8

// namespacePods is one namespace's slice of the pod listing, also the JSON
// and YAML payload shape.
type namespacePods struct {
	Namespace string            `json:"namespace"`
	Pods      []kube.PodSummary `json:"pods"`
}

func newPodsCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pods",
		Aliases:       []string{"po"},
		Short:         "List pods with status, readiness, restarts, and age",
		Long:          "List the pods visible in the target namespace, or across every namespace with --all-namespaces. --metrics adds CPU and memory columns when the metrics API is installed.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPods(cmd, opts)
		},
	}
	opts.BindPodFlags(cmd.Flags())
	decorateCommandHelp(cmd, "Pod Flags")
	return cmd
}

func runPods(cmd *cobra.Command, opts *config.Options) error {
	logger, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	client, namespace, err := connect(opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	discovery := kube.NewDiscovery(client.Clientset, client.Metrics, logger)

	namespaces := []string{namespace}
	if opts.AllNamespaces {
		namespaces, err = discovery.ListNamespaces(ctx)
		if err != nil {
			return err
		}
	}

	listings := make([]namespacePods, len(namespaces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxNamespaceFanout)
	for i, ns := range namespaces {
		i, ns := i, ns
		g.Go(func() error {
			pods, err := discovery.ListPods(gctx, ns, opts.LabelSelector, opts.ShowUsage)
			if err != nil {
				return err
			}
			listings[i] = namespacePods{Namespace: ns, Pods: pods}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.OutputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	case "yaml":
		b, err := yaml.Marshal(listings)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	}

	total := 0
	for _, listing := range listings {
		total += len(listing.Pods)
	}
	if total == 0 {
		if opts.LabelSelector != "" {
			fmt.Fprintf(out, "No pods matched selector %q.\n", opts.LabelSelector)
		} else {
			fmt.Fprintln(out, "No pods found.")
		}
		return nil
	}
	renderPodTable(out, listings, opts.AllNamespaces, opts.ShowUsage)
	return nil
}

func renderPodTable(w io.Writer, listings []namespacePods, withNamespace, withUsage bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "NAME\tSTATUS\tREADY\tRESTARTS\tAGE"
	if withNamespace {
		header = "NAMESPACE\t" + header
	}
	if withUsage {
		header += "\tCPU\tMEMORY"
	}
	fmt.Fprintln(tw, header)
	for _, listing := range listings {
		for _, pod := range listing.Pods {
			cells := []string{pod.Name, phaseText(pod.Phase), readyText(pod.Ready), restartsText(pod.Restarts), pod.Age}
			if withNamespace {
				cells = append([]string{listing.Namespace}, cells...)
			}
			if withUsage {
				cells = append(cells, orDash(pod.CPU), orDash(pod.Memory))
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
	}
	_ = tw.Flush()
}

func phaseText(phase string) string {
	if color.NoColor {
		return phase
	}
	switch phase {
	case "Running", "Succeeded":
		return color.New(color.FgGreen).Sprint(phase)
	case "Pending", "ContainerCreating":
		return color.New(color.FgYellow).Sprint(phase)
	default:
		return color.New(color.FgHiRed).Sprint(phase)
	}
}

func readyText(ready string) string {
	if color.NoColor {
		return ready
	}
	parts := strings.SplitN(ready, "/", 2)
	if len(parts) == 2 && parts[0] == parts[1] && parts[0] != "0" {
		return color.New(color.FgGreen).Sprint(ready)
	}
	return color.New(color.FgYellow).Sprint(ready)
}

func restartsText(restarts int32) string {
	text := fmt.Sprintf("%d", restarts)
	if restarts == 0 || color.NoColor {
		return text
	}
	return color.New(color.FgYellow).Sprint(text)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
