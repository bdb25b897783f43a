package util

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// UISpinner shows progress for a slow step on a terminal. In plain mode,
// used when logging is verbose or the output is not a terminal, it prints
// one line per event instead of animating.
type UISpinner struct {
	sp    *spinner.Spinner
	out   io.Writer
	plain bool
}

// NewUISpinner starts a spinner labelled message.
func NewUISpinner(out io.Writer, plain bool, message string) *UISpinner {
	s := &UISpinner{out: out, plain: plain}
	if plain {
		fmt.Fprintf(out, "%s\n", message)
		return s
	}

	// dots style (CharSet 14)
	s.sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.sp.Prefix = "  "
	s.sp.Suffix = " " + message
	s.sp.Start()
	return s
}

// Success stops the spinner and prints a success line.
func (s *UISpinner) Success(message string) {
	s.finish("✓", message)
}

// Fail stops the spinner and prints a failure line.
func (s *UISpinner) Fail(message string) {
	s.finish("✗", message)
}

func (s *UISpinner) finish(mark, message string) {
	if s.plain {
		fmt.Fprintf(s.out, "%s %s\n", mark, message)
		return
	}
	s.sp.Stop()
	fmt.Fprintf(s.out, "\r\033[K  %s %s\n", mark, message)
}
