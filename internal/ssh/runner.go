// Package ssh opens authenticated sessions to remote hosts and runs
// commands over them. Every connection is independent: there is no pooling
// or reuse between calls, which keeps correctness simple at the cost of
// per-call setup latency.
package ssh

import (
	"context"
	"time"
)

// DefaultPort is used when ConnectionOptions.Port is unset.
const DefaultPort = 22

// DefaultTimeout bounds connection establishment when unset.
const DefaultTimeout = 30 * time.Second

// Result holds the output of one synchronous command run.
type Result struct {
	// ExitStatus is the remote command's exit code. A non-zero status is
	// not an error; it is reported here with the captured output.
	ExitStatus int

	// Stdout is the captured standard output, kept separate from stderr.
	Stdout []byte

	// Stderr is the captured standard error.
	Stderr []byte
}

// Runner runs commands over an established connection.
type Runner interface {
	// Exec runs a command and blocks until it exits or ctx expires.
	Exec(ctx context.Context, cmd string) (*Result, error)
}

// ConnectionOptions configures how an SSH connection is established.
type ConnectionOptions struct {
	// Host is the target host name or IP.
	Host string

	// Port is the SSH port (defaults to 22 when unset).
	Port int

	// User is the SSH username.
	User string

	// KeyPath is the path to the private key. Supported key types are
	// tried in a fixed order until one parses.
	KeyPath string

	// PassphrasePrompt is consulted when the key is encrypted.
	PassphrasePrompt PassphrasePrompt

	// Timeout controls how long to wait when establishing connections.
	Timeout time.Duration
}
