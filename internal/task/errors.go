package task

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteNotFound indicates the task left no artifacts on the host.
	ErrRemoteNotFound = errors.New("task: not found on remote host")

	// ErrPartialFailure indicates the process was terminated but artifact
	// cleanup failed; the log or pid file may remain on the host.
	ErrPartialFailure = errors.New("task: killed but artifact cleanup failed")
)

// LaunchError reports a failed background launch with the wrapper's output.
type LaunchError struct {
	Command string
	Output  string
	Stderr  string
}

func (e *LaunchError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("task launch failed: %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("task launch failed: %s: unexpected wrapper output %q", e.Command, e.Output)
}
