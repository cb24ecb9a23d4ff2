// completion_helpers.go centralizes Cobra completion helpers (namespace
// flags and pod name arguments) so every command reuses them consistently.
package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/example/klex/internal/config"
	"github.com/example/klex/internal/kube"
)

const completionTimeout = 2 * time.Second

func registerNamespaceCompletion(cmd *cobra.Command, flagName string, opts *config.Options) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		flag = cmd.InheritedFlags().Lookup(flagName)
	}
	if flag == nil {
		return
	}
	cmd.RegisterFlagCompletionFunc(flagName, func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
		defer cancel()
		client, err := kube.New(opts.KubeConfigPath, opts.Context)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		list, err := client.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var completions []string
		for _, ns := range list.Items {
			if toComplete == "" || strings.HasPrefix(ns.Name, toComplete) {
				completions = append(completions, ns.Name)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
}

// registerPodCompletion completes the POD positional argument from the
// effective namespace. Only the first argument is completed.
func registerPodCompletion(cmd *cobra.Command, opts *config.Options) {
	cmd.ValidArgsFunction = func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
		defer cancel()
		client, namespace, err := connect(opts)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		list, err := client.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var completions []string
		for _, pod := range list.Items {
			if toComplete == "" || strings.HasPrefix(pod.Name, toComplete) {
				completions = append(completions, pod.Name)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}
