package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// namespaceHelpRequested reports whether the namespace flag captured a help
// token (for example `klex pods -n -h`), so the request can be forwarded to
// Cobra's help plumbing instead of treating "-h" as a namespace value.
func namespaceHelpRequested(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.InheritedFlags()} {
		if fs == nil {
			continue
		}
		f := fs.Lookup("namespace")
		if f == nil || !f.Changed {
			continue
		}
		if requestedHelp(f.Value.String()) {
			return true
		}
	}
	return false
}

func requestedHelp(value string) bool {
	switch strings.TrimSpace(value) {
	case "-h", "--help", "-help", "help":
		return true
	}
	return false
}
