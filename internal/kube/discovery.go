// File: internal/kube/discovery.go
// Brief: Cluster introspection for the CLI and dashboard: namespace
// names, pod summaries with optional usage columns, and per-pod
// container listings in manifest order.

package kube

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// PodSummary is one row of `klex pods` and of the dashboard's pod list.
// CPU and Memory stay empty unless usage was requested and the
// metrics API answered.
type PodSummary struct {
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	Ready    string `json:"ready"`
	Restarts int32  `json:"restarts"`
	Age      string `json:"age"`
	CPU      string `json:"cpu,omitempty"`
	Memory   string `json:"memory,omitempty"`
}

// ContainerInfo describes one container of a pod, init containers first,
// in manifest order.
type ContainerInfo struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Init  bool   `json:"init"`
	Ready bool   `json:"ready"`
	State string `json:"state,omitempty"`
}

// Discovery answers the list questions the CLI and dashboard ask before
// any log is read.
type Discovery struct {
	client  kubernetes.Interface
	metrics metricsclient.Interface
	log     logr.Logger
}

// NewDiscovery builds a Discovery. metrics may be nil; usage columns are
// then skipped.
func NewDiscovery(client kubernetes.Interface, metrics metricsclient.Interface, logger logr.Logger) *Discovery {
	return &Discovery{client: client, metrics: metrics, log: logger.WithName("discovery")}
}

func (d *Discovery) ListNamespaces(ctx context.Context) ([]string, error) {
	list, err := d.client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for i := range list.Items {
		names = append(names, list.Items[i].Name)
	}
	sort.Strings(names)
	return names, nil
}

// ListPods summarizes the pods in namespace, optionally narrowed by a
// label selector. With withUsage set, CPU and memory columns are filled
// from the metrics API when it is reachable; an unreachable metrics
// server is not an error, the columns just stay empty.
func (d *Discovery) ListPods(ctx context.Context, namespace, selector string, withUsage bool) ([]PodSummary, error) {
	listOpts := metav1.ListOptions{}
	if selector != "" {
		listOpts.LabelSelector = selector
	}
	list, err := d.client.CoreV1().Pods(namespace).List(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", namespace, err)
	}
	var usage map[string]podUsage
	if withUsage {
		usage = d.podUsage(ctx, namespace)
	}
	summaries := make([]PodSummary, 0, len(list.Items))
	for i := range list.Items {
		pod := &list.Items[i]
		s := summarizePod(pod)
		if u, ok := usage[pod.Name]; ok {
			s.CPU, s.Memory = u.cpu, u.memory
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// ListContainers returns the containers of a pod, init containers first,
// each annotated with readiness and current state when the kubelet has
// reported one.
func (d *Discovery) ListContainers(ctx context.Context, namespace, pod string) ([]ContainerInfo, error) {
	p, err := d.client.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get pod %s/%s: %w", namespace, pod, err)
	}
	statuses := make(map[string]corev1.ContainerStatus, len(p.Status.ContainerStatuses)+len(p.Status.InitContainerStatuses))
	for _, st := range p.Status.InitContainerStatuses {
		statuses[st.Name] = st
	}
	for _, st := range p.Status.ContainerStatuses {
		statuses[st.Name] = st
	}
	infos := make([]ContainerInfo, 0, len(p.Spec.InitContainers)+len(p.Spec.Containers))
	for _, c := range p.Spec.InitContainers {
		infos = append(infos, describeContainer(c, statuses, true))
	}
	for _, c := range p.Spec.Containers {
		infos = append(infos, describeContainer(c, statuses, false))
	}
	return infos, nil
}

// DefaultContainer names the container log commands target when the user
// does not pick one: the first regular container of the pod.
func (d *Discovery) DefaultContainer(ctx context.Context, namespace, pod string) (string, error) {
	p, err := d.client.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get pod %s/%s: %w", namespace, pod, err)
	}
	if len(p.Spec.Containers) == 0 {
		return "", fmt.Errorf("pod %s/%s has no containers", namespace, pod)
	}
	return p.Spec.Containers[0].Name, nil
}

type podUsage struct {
	cpu    string
	memory string
}

func (d *Discovery) podUsage(ctx context.Context, namespace string) map[string]podUsage {
	if d.metrics == nil {
		return nil
	}
	list, err := d.metrics.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		// metrics-server is optional equipment.
		d.log.V(1).Info("pod metrics unavailable", "namespace", namespace, "error", err.Error())
		return nil
	}
	usage := make(map[string]podUsage, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		var cpuMilli, memBytes int64
		for _, c := range item.Containers {
			cpuMilli += c.Usage.Cpu().MilliValue()
			memBytes += c.Usage.Memory().Value()
		}
		usage[item.Name] = podUsage{
			cpu:    fmt.Sprintf("%dm", cpuMilli),
			memory: fmt.Sprintf("%dMi", memBytes/(1024*1024)),
		}
	}
	return usage
}

func summarizePod(pod *corev1.Pod) PodSummary {
	ready := 0
	var restarts int32
	for _, status := range pod.Status.ContainerStatuses {
		if status.Ready {
			ready++
		}
		restarts += status.RestartCount
	}
	phase := string(pod.Status.Phase)
	if pod.DeletionTimestamp != nil {
		phase = "Terminating"
	}
	return PodSummary{
		Name:     pod.Name,
		Phase:    phase,
		Ready:    fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers)),
		Restarts: restarts,
		Age:      humanizeAge(pod.CreationTimestamp.Time),
	}
}

func describeContainer(c corev1.Container, statuses map[string]corev1.ContainerStatus, init bool) ContainerInfo {
	info := ContainerInfo{Name: c.Name, Image: c.Image, Init: init}
	st, ok := statuses[c.Name]
	if !ok {
		return info
	}
	info.Ready = st.Ready
	switch {
	case st.State.Running != nil:
		info.State = "Running"
	case st.State.Waiting != nil:
		info.State = st.State.Waiting.Reason
	case st.State.Terminated != nil:
		info.State = "Terminated"
		if st.State.Terminated.Reason != "" {
			info.State = st.State.Terminated.Reason
		}
	}
	return info
}

func humanizeAge(ts time.Time) string {
	if ts.IsZero() {
		return "n/a"
	}
	diff := time.Since(ts)
	if diff < time.Second {
		return "now"
	}
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	}
}
