// File: internal/config/config.go
// Brief: Flag plumbing and runtime options shared by klex commands.

// Package config defines the flag plumbing and runtime options shared by
// klex's commands, translating Cobra/Viper flag values into a strongly
// typed struct that the search, stream, and dashboard layers consume.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/klex/internal/search"
)

// Options holds all CLI configuration used by klex. One struct serves
// every subcommand; each binds only the flag groups it understands.
type Options struct {
	// Connection and scope.
	KubeConfigPath string
	Context        string
	Namespace      string
	AllNamespaces  bool

	// Pod listing.
	LabelSelector string
	ShowUsage     bool
	OutputFormat  string

	// Log retrieval.
	Container string
	TailLines int64
	SinceRaw  string
	Since     time.Duration

	// Searching.
	ContextLines   int
	GroupMultiline bool
	MaxLines       int
	MaxMatches     int
	StackPatterns  []string

	// Dashboard.
	ListenAddr string

	// Presentation and diagnostics.
	ColorMode    string
	LogLevel     string
	KubeLogLevel int
}

const defaultListenAddr = ":5000"

// NewOptions returns Options with defaults applied.
func NewOptions() *Options {
	return &Options{
		TailLines:    100,
		ContextLines: search.DefaultContextLines,
		MaxLines:     search.DefaultMaxLinesScanned,
		MaxMatches:   search.DefaultMaxMatches,
		OutputFormat: "table",
		ListenAddr:   defaultListenAddr,
		ColorMode:    "auto",
		LogLevel:     "info",
	}
}

// BindGlobalFlags attaches the connection and diagnostics flags every
// command shares and returns the flag names for help grouping.
func (o *Options) BindGlobalFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVar(&o.KubeConfigPath, "kubeconfig", "", "Path to the kubeconfig file to use (defaults to the standard loading rules)")
	names = append(names, "kubeconfig")
	fs.StringVar(&o.Context, "context", "", "Kubeconfig context to use")
	names = append(names, "context")
	fs.StringVarP(&o.Namespace, "namespace", "n", "", "Kubernetes namespace to use. Defaults to the context namespace.")
	names = append(names, "namespace")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Diagnostic log level: debug, info, warn, or error")
	names = append(names, "log-level")
	fs.IntVar(&o.KubeLogLevel, "kube-log-level", 0, "Verbosity for client-go's own logging (0 disables)")
	names = append(names, "kube-log-level")
	fs.StringVarP(&o.ColorMode, "color", "m", o.ColorMode, "Color output. 'auto': colorize if tty attached, 'always': always colorize, 'never': never colorize")
	names = append(names, "color")
	return names
}

// BindPodFlags attaches the pod listing flags.
func (o *Options) BindPodFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVarP(&o.LabelSelector, "selector", "l", "", "Label selector to filter pods")
	names = append(names, "selector")
	fs.BoolVarP(&o.AllNamespaces, "all-namespaces", "A", false, "If present, list pods across all namespaces (overrides --namespace)")
	names = append(names, "all-namespaces")
	fs.BoolVar(&o.ShowUsage, "metrics", false, "Include CPU and memory usage columns from the metrics API when available")
	names = append(names, "metrics")
	fs.StringVarP(&o.OutputFormat, "output", "o", o.OutputFormat, "Output format: table, json, or yaml")
	names = append(names, "output")
	return names
}

// BindLogFlags attaches the flags of the one-shot log fetch commands.
func (o *Options) BindLogFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVarP(&o.Container, "container", "c", "", "Container to read from (defaults to the pod's first container)")
	names = append(names, "container")
	fs.Int64VarP(&o.TailLines, "tail", "t", o.TailLines, "Number of recent log lines to fetch, -1 for all available")
	names = append(names, "tail")
	fs.StringVarP(&o.SinceRaw, "since", "s", "", "Only consider logs newer than a relative duration like 30s, 5m, or 2h")
	names = append(names, "since")
	return names
}

// BindFollowFlags attaches the flags of the live tail command.
func (o *Options) BindFollowFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVarP(&o.Container, "container", "c", "", "Container to follow (defaults to the pod's first container)")
	names = append(names, "container")
	return names
}

// BindSearchFlags attaches the search command's flags: the log window to
// fetch plus the search tuning knobs.
func (o *Options) BindSearchFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVarP(&o.Container, "container", "c", "", "Container to search (defaults to the pod's first container)")
	names = append(names, "container")
	fs.StringVarP(&o.SinceRaw, "since", "s", "", "Only consider logs newer than a relative duration like 30s, 5m, or 2h")
	names = append(names, "since")
	fs.IntVarP(&o.ContextLines, "context-lines", "C", o.ContextLines, "Lines of context to show around each match")
	names = append(names, "context-lines")
	fs.BoolVarP(&o.GroupMultiline, "group", "g", false, "Group stack traces into the match that produced them")
	names = append(names, "group")
	fs.IntVar(&o.MaxLines, "max-lines", o.MaxLines, "Upper bound on log lines fetched and scanned")
	names = append(names, "max-lines")
	fs.IntVar(&o.MaxMatches, "max-matches", o.MaxMatches, "Upper bound on reported matches")
	names = append(names, "max-matches")
	fs.StringArrayVar(&o.StackPatterns, "stack-pattern", nil, "Regex recognizing a stack continuation line; repeat to replace the built-in set")
	names = append(names, "stack-pattern")
	return names
}

// BindWebFlags attaches the dashboard flags.
func (o *Options) BindWebFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVar(&o.ListenAddr, "listen", o.ListenAddr, "Address the dashboard listens on")
	names = append(names, "listen")
	return names
}

// Validate ensures the provided options are coherent, normalizes the
// enumerated values, and fails fast on regex or duration inputs that
// would otherwise surface mid-command.
func (o *Options) Validate() error {
	o.Namespace = strings.TrimSpace(o.Namespace)
	if o.AllNamespaces && o.Namespace != "" {
		return fmt.Errorf("cannot combine --all-namespaces with an explicit --namespace")
	}
	if o.SinceRaw != "" {
		dur, err := time.ParseDuration(o.SinceRaw)
		if err != nil {
			return fmt.Errorf("invalid since duration %q: %w", o.SinceRaw, err)
		}
		if dur < 0 {
			return fmt.Errorf("--since cannot be negative")
		}
		o.Since = dur
	}
	if o.TailLines < -1 {
		return fmt.Errorf("--tail cannot be less than -1")
	}
	if o.ContextLines < 0 {
		return fmt.Errorf("--context-lines cannot be negative")
	}
	if o.MaxLines < 1 {
		return fmt.Errorf("--max-lines must be at least 1")
	}
	if o.MaxMatches < 1 {
		return fmt.Errorf("--max-matches must be at least 1")
	}
	for _, val := range o.StackPatterns {
		if _, err := regexp.Compile(val); err != nil {
			return fmt.Errorf("invalid stack pattern %q: %w", val, err)
		}
	}
	switch strings.ToLower(o.ColorMode) {
	case "", "auto":
		o.ColorMode = "auto"
	case "always":
		o.ColorMode = "always"
	case "never":
		o.ColorMode = "never"
	default:
		return fmt.Errorf("invalid --color value %q (allowed: auto, always, never)", o.ColorMode)
	}
	switch strings.ToLower(o.LogLevel) {
	case "debug", "info", "warn", "error":
		o.LogLevel = strings.ToLower(o.LogLevel)
	default:
		return fmt.Errorf("invalid --log-level value %q (allowed: debug, info, warn, error)", o.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(o.OutputFormat)) {
	case "", "table":
		o.OutputFormat = "table"
	case "json":
		o.OutputFormat = "json"
	case "yaml":
		o.OutputFormat = "yaml"
	default:
		return fmt.Errorf("invalid --output value %q (must be one of: table, json, yaml)", o.OutputFormat)
	}
	if o.KubeLogLevel < 0 {
		return fmt.Errorf("--kube-log-level cannot be negative")
	}
	if strings.TrimSpace(o.ListenAddr) == "" {
		o.ListenAddr = defaultListenAddr
	}
	return nil
}

// SearchRequest translates the options into a request for the given
// pattern. Validate must have run first so Since is populated.
func (o *Options) SearchRequest(pattern string) search.Request {
	return search.Request{
		Pattern:         pattern,
		ContextLines:    o.ContextLines,
		MaxMatches:      o.MaxMatches,
		MaxLinesScanned: o.MaxLines,
		Since:           o.Since,
		GroupMultiline:  o.GroupMultiline,
	}
}
