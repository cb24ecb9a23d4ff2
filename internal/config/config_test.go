// File: internal/config/config_test.go
// Brief: Internal config package implementation for 'config'.

// config_test.go verifies Options defaults, validation, and the mapping
// into search requests for klex flags.
package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions()
	if opts.TailLines != 100 {
		t.Fatalf("tail default mismatch, got %d", opts.TailLines)
	}
	if opts.ContextLines != 3 {
		t.Fatalf("context default mismatch, got %d", opts.ContextLines)
	}
	if opts.MaxLines != 1000 || opts.MaxMatches != 50 {
		t.Fatalf("search bounds defaults mismatch, got %d/%d", opts.MaxLines, opts.MaxMatches)
	}
	if opts.ListenAddr != ":5000" {
		t.Fatalf("listen default mismatch, got %s", opts.ListenAddr)
	}
	if opts.ColorMode != "auto" || opts.LogLevel != "info" || opts.OutputFormat != "table" {
		t.Fatalf("presentation defaults mismatch: %s/%s/%s", opts.ColorMode, opts.LogLevel, opts.OutputFormat)
	}
}

func TestFlagGroupsBindWithoutCollision(t *testing.T) {
	// Each command composes its own flag set from one shared Options, so
	// every group must register cleanly on a fresh set and report the
	// names it owns.
	opts := NewOptions()
	groups := map[string]func(*pflag.FlagSet) []string{
		"global": opts.BindGlobalFlags,
		"pods":   opts.BindPodFlags,
		"logs":   opts.BindLogFlags,
		"search": opts.BindSearchFlags,
		"follow": opts.BindFollowFlags,
		"web":    opts.BindWebFlags,
	}
	for name, bind := range groups {
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		for _, flagName := range bind(fs) {
			if fs.Lookup(flagName) == nil {
				t.Fatalf("%s group reported %q but did not register it", name, flagName)
			}
		}
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	opts := NewOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate failed on defaults: %v", err)
	}
}

func TestValidateParsesSince(t *testing.T) {
	opts := NewOptions()
	opts.SinceRaw = "90m"
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if opts.Since != 90*time.Minute {
		t.Fatalf("expected 90m, got %v", opts.Since)
	}
}

func TestValidateRejectsBadSince(t *testing.T) {
	opts := NewOptions()
	opts.SinceRaw = "yesterday"
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected error for unparseable since")
	}
	opts = NewOptions()
	opts.SinceRaw = "-5m"
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected error for negative since")
	}
}

func TestValidateRejectsNamespaceConflict(t *testing.T) {
	opts := NewOptions()
	opts.AllNamespaces = true
	opts.Namespace = "default"
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected validation error for namespace conflict")
	}
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"tail below -1", func(o *Options) { o.TailLines = -2 }},
		{"negative context", func(o *Options) { o.ContextLines = -1 }},
		{"zero max-lines", func(o *Options) { o.MaxLines = 0 }},
		{"zero max-matches", func(o *Options) { o.MaxMatches = 0 }},
		{"negative kube log level", func(o *Options) { o.KubeLogLevel = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := NewOptions()
			tc.mutate(opts)
			if err := opts.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateStackPatterns(t *testing.T) {
	opts := NewOptions()
	opts.StackPatterns = []string{`^\s+at\s`}
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	opts = NewOptions()
	opts.StackPatterns = []string{"("}
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected error for unbalanced pattern")
	}
}

func TestValidateNormalizesEnums(t *testing.T) {
	opts := NewOptions()
	opts.ColorMode = "ALWAYS"
	opts.LogLevel = "Debug"
	opts.OutputFormat = " JSON "
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if opts.ColorMode != "always" || opts.LogLevel != "debug" || opts.OutputFormat != "json" {
		t.Fatalf("normalization mismatch: %s/%s/%s", opts.ColorMode, opts.LogLevel, opts.OutputFormat)
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	opts := NewOptions()
	opts.ColorMode = "sometimes"
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected error for color mode")
	}
	opts = NewOptions()
	opts.LogLevel = "trace"
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected error for log level")
	}
	opts = NewOptions()
	opts.OutputFormat = "xml"
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected error for output format")
	}
}

func TestSearchRequestMapping(t *testing.T) {
	opts := NewOptions()
	opts.ContextLines = 5
	opts.MaxMatches = 7
	opts.MaxLines = 400
	opts.GroupMultiline = true
	opts.SinceRaw = "15m"
	if err := opts.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	req := opts.SearchRequest("timeout")
	if req.Pattern != "timeout" {
		t.Fatalf("pattern mismatch: %s", req.Pattern)
	}
	if req.ContextLines != 5 || req.MaxMatches != 7 || req.MaxLinesScanned != 400 {
		t.Fatalf("bounds mismatch: %d/%d/%d", req.ContextLines, req.MaxMatches, req.MaxLinesScanned)
	}
	if !req.GroupMultiline || req.Since != 15*time.Minute {
		t.Fatalf("grouping/since mismatch: %v/%v", req.GroupMultiline, req.Since)
	}
}
