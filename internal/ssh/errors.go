package ssh

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthentication indicates no supported key type was accepted by the host.
	ErrAuthentication = errors.New("ssh: authentication failed")

	// ErrConnectivity indicates the host was unreachable or the connect timed out.
	ErrConnectivity = errors.New("ssh: connection failed")

	// ErrExecTimeout indicates a command run exceeded its bound.
	ErrExecTimeout = errors.New("ssh: command timed out")

	// ErrPassphraseRequired indicates the private key is encrypted and no
	// passphrase prompt is configured.
	ErrPassphraseRequired = errors.New("ssh: passphrase required for private key")

	// ErrMissingHost indicates no host was provided in connection options.
	ErrMissingHost = errors.New("ssh: host is required")
)

// ExecError wraps session-level command failures with captured details.
type ExecError struct {
	Command string
	Stdout  []byte
	Stderr  []byte
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("ssh command failed: %s: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// TimeoutError reports an exec that exceeded its bound, with the bound that
// was in force so the caller can decide to retry or escalate.
type TimeoutError struct {
	Command string
	Bound   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ssh command timed out after %s: %s", e.Bound, e.Command)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrExecTimeout
}
