// spinner.go implements the CLI spinner displayed while klex waits on a
// log fetch. Callers gate it behind IsTerminalWriter so piped output
// never sees the carriage returns.
package ui

import (
	"fmt"
	"io"
	"time"
)

// StartSpinner prints a lightweight ASCII spinner until the returned
// stop function is called. Stop clears the spinner line so the real
// output starts on a clean row.
func StartSpinner(w io.Writer, message string) func() {
	frames := []rune{'|', '/', '-', '\\'}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		idx := 0
		for {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%*s\r", len(message)+2, "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %c", message, frames[idx])
				idx = (idx + 1) % len(frames)
			}
		}
	}()
	return func() {
		select {
		case <-done:
		default:
			close(done)
		}
		<-finished
	}
}
