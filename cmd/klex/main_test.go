// File: cmd/klex/main_test.go
// Brief: Root command wiring, flag validation, and config plumbing tests.

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/klex/internal/search"
)

var (
	sharedConfigOnce sync.Once
	sharedConfigPath string
	sharedConfigErr  error
)

// useSharedConfig pins KLEX_CONFIG to a file that outlives the individual
// test. Every root command registers a viper initializer that re-reads its
// captured path on each later Execute, so the file must stay readable for
// the whole test binary.
func useSharedConfig(t *testing.T) {
	t.Helper()
	sharedConfigOnce.Do(func() {
		f, err := os.CreateTemp("", "klex-test-config-*.yaml")
		if err != nil {
			sharedConfigErr = err
			return
		}
		if _, err := f.WriteString("{}\n"); err != nil {
			sharedConfigErr = err
			f.Close()
			return
		}
		sharedConfigErr = f.Close()
		sharedConfigPath = f.Name()
	})
	if sharedConfigErr != nil {
		t.Fatalf("create shared config: %v", sharedConfigErr)
	}
	t.Setenv("KLEX_CONFIG", sharedConfigPath)
}

func TestRootWithoutArgsShowsHelp(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Usage:") {
		t.Fatalf("expected usage in help output, got: %q", got)
	}
	for _, name := range []string{"pods", "namespaces", "containers", "logs", "search", "follow", "web", "version"} {
		if !strings.Contains(got, name) {
			t.Fatalf("expected subcommand %q in help output, got: %q", name, got)
		}
	}
}

func TestRootRejectsUnknownCommand(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"bogus"})

	err := root.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if !strings.Contains(err.Error(), `unknown command "bogus"`) {
		t.Fatalf("expected unknown command error, got: %v", err)
	}
}

func TestNamespaceHelpTokenShowsHelp(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"pods", "-n", "-h"})

	err := root.ExecuteContext(context.Background())
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected help response, got %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Usage:") {
		t.Fatalf("expected help output in stdout, got: %q", got)
	}
}

func TestPodsRejectsBadOutputFormat(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"pods", "-o", "xml"})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid --output") {
		t.Fatalf("expected output format error, got: %v", err)
	}
}

func TestPodsRejectsAllNamespacesWithExplicitNamespace(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"pods", "-A", "-n", "payments"})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "--all-namespaces") {
		t.Fatalf("expected namespace conflict error, got: %v", err)
	}
}

func TestSearchRejectsBadPatternBeforeConnecting(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "checkout-1", "["})

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, search.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got: %v", err)
	}
}

func TestSearchRejectsBadStackPattern(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "checkout-1", "timeout", "--stack-pattern", "("})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid stack pattern") {
		t.Fatalf("expected stack pattern error, got: %v", err)
	}
}

func TestConfigSearchDirsPreferXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dirs := configSearchDirs()
	if len(dirs) == 0 {
		t.Fatal("expected at least one config dir")
	}
	want := filepath.Join(xdg, "klex")
	if dirs[0] != want {
		t.Fatalf("expected %q first, got %v", want, dirs)
	}
}

func TestReadConfigFileMissingIsFatalOnlyWhenExplicit(t *testing.T) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(t.TempDir())
	if err := readConfigFile(v, false); err != nil {
		t.Fatalf("missing implicit config should be fine, got: %v", err)
	}

	v = viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err := readConfigFile(v, true); err == nil {
		t.Fatal("missing explicit config should error")
	}
}

func TestRequestedHelpTokens(t *testing.T) {
	for _, token := range []string{"-h", "--help", "-help", "help", "  -h  "} {
		if !requestedHelp(token) {
			t.Fatalf("expected %q to request help", token)
		}
	}
	for _, token := range []string{"", "prod", "-n"} {
		if requestedHelp(token) {
			t.Fatalf("did not expect %q to request help", token)
		}
	}
}
