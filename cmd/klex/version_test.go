package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/example/klex/internal/version"
)

func TestVersionCommandPrintsClientVersion(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"version"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Client Version:") {
		t.Fatalf("expected version header, got: %q", got)
	}
}

func TestVersionShortPrintsBareVersion(t *testing.T) {
	useSharedConfig(t)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"version", "--short"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != version.Get().Version {
		t.Fatalf("expected bare version %q, got: %q", version.Get().Version, got)
	}
}
