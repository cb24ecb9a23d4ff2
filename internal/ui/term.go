// File: internal/ui/term.go
// Brief: Terminal detection helpers shared by the CLI commands.

// Package ui holds the small terminal-facing helpers used by klex's
// command output: tty detection for color decisions and width probing
// for panel rules.
package ui

import (
	"io"

	"golang.org/x/term"
)

type fdProvider interface {
	Fd() uintptr
}

// IsTerminalWriter reports whether w is attached to a terminal. Writers
// without a file descriptor (buffers, pipes wrapped by cobra in tests)
// are never terminals.
func IsTerminalWriter(w io.Writer) bool {
	v, ok := w.(fdProvider)
	if !ok {
		return false
	}
	return term.IsTerminal(int(v.Fd()))
}

// TerminalWidth returns the column count of the terminal behind w, when
// there is one.
func TerminalWidth(w io.Writer) (int, bool) {
	if v, ok := w.(fdProvider); ok {
		if cols, _, err := term.GetSize(int(v.Fd())); err == nil {
			return cols, true
		}
	}
	return 0, false
}
