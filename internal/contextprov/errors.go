package contextprov

import (
	"fmt"

	"github.com/dshills/aireview/internal/redact"
)

// CommandError reports a failed context command or a breached size ceiling.
// It fails a single check; other checks still run. Secrets in the captured
// stderr are masked when the error is rendered.
type CommandError struct {
	ContextID string
	Command   string
	ExitCode  int
	Stderr    string
	Msg       string
	Err       error
}

func (e *CommandError) Error() string {
	msg := e.Msg
	if e.ContextID != "" {
		msg = fmt.Sprintf("context '%s': %s", e.ContextID, msg)
	}
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + redact.Secrets(e.Stderr)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }
