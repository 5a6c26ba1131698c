package gnuplot

import (
	"fmt"
	"time"
)

// SpawnError indicates the gnuplot child process could not be launched.
// It is fatal to session construction and is never retried.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning gnuplot %q: %s", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// GuardError indicates that a command line was rejected before being written
// because it would break the stderr synchronization protocol.
type GuardError struct {
	Line   string
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("refusing to send %q: %s", e.Line, e.Reason)
}

// CommandError indicates that the child reported diagnostics for a command we
// sent. The diagnostics are passed through verbatim.
type CommandError struct {
	Line        string
	Diagnostics string
}

func (e *CommandError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("gnuplot reported an error: %s", e.Diagnostics)
	}
	return fmt.Sprintf("gnuplot rejected %q: %s", e.Line, e.Diagnostics)
}

// HangTimeoutError indicates that the child failed to echo a sync token
// within the poll timeout. Once this happens the connection is stuck: the
// child may be mid-way through reading a partial command or payload, so no
// further writes can safely be made, and all subsequent calls fail with the
// same error without touching the child.
type HangTimeoutError struct {
	Timeout time.Duration
	Partial string
}

func (e *HangTimeoutError) Error() string {
	if e.Partial == "" {
		return fmt.Sprintf("gnuplot did not respond within %s, session is stuck", e.Timeout)
	}
	return fmt.Sprintf("gnuplot did not respond within %s, session is stuck (partial output: %q)", e.Timeout, e.Partial)
}

// ExitedError indicates the child closed its stderr stream, which means it
// exited or crashed while we were waiting on it.
type ExitedError struct {
	Partial string
}

func (e *ExitedError) Error() string {
	if e.Partial == "" {
		return "gnuplot exited unexpectedly"
	}
	return fmt.Sprintf("gnuplot exited unexpectedly (last output: %q)", e.Partial)
}
