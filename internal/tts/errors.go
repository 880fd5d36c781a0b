package tts

import "fmt"

// InvokeErrorKind distinguishes the ways a subprocess invocation fails
type InvokeErrorKind string

const (
	InvokeNotFound InvokeErrorKind = "not_found" // executable missing from PATH
	InvokeExit     InvokeErrorKind = "exit"      // nonzero exit status
	InvokeTimeout  InvokeErrorKind = "timeout"   // wall-clock deadline exceeded
	InvokeCanceled InvokeErrorKind = "canceled"  // caller abandoned the request
)

// InvokeError is the typed result of a failed engine invocation. It
// carries the captured output streams for diagnostics; callers dispatch
// on Kind, never on the error text.
type InvokeError struct {
	Kind    InvokeErrorKind
	Command string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *InvokeError) Error() string {
	switch e.Kind {
	case InvokeNotFound:
		return fmt.Sprintf("synthesis engine %q not found: %v", e.Command, e.Err)
	case InvokeTimeout:
		return fmt.Sprintf("synthesis engine %q timed out: %v", e.Command, e.Err)
	case InvokeCanceled:
		return fmt.Sprintf("synthesis canceled before %q finished: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("synthesis engine %q failed: %v (stderr: %s)", e.Command, e.Err, e.Stderr)
	}
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}
