package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/sftp"

	xssh "golang.org/x/crypto/ssh"
)

// Client is a live connection to one endpoint. Each Exec opens its own
// session on the connection; the client itself is single-use per operation.
type Client struct {
	options ConnectionOptions
	conn    *xssh.Client
}

// Dial opens an authenticated connection to the endpoint described by opts.
// It fails with ErrAuthentication when the host rejects the key, and with
// ErrConnectivity when the host is unreachable or the attempt times out.
func Dial(ctx context.Context, opts ConnectionOptions) (*Client, error) {
	if opts.Host == "" {
		return nil, ErrMissingHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	signer, _, err := LoadSigner(opts.KeyPath, opts.PassphrasePrompt)
	if err != nil {
		return nil, err
	}

	config := &xssh.ClientConfig{
		User:            opts.User,
		Auth:            []xssh.AuthMethod{xssh.PublicKeys(signer)},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(),
		Timeout:         opts.Timeout,
	}

	addr := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))

	dialer := net.Dialer{Timeout: opts.Timeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnectivity, addr, err)
	}

	// Bound the handshake; cleared once the connection is up.
	_ = tcpConn.SetDeadline(time.Now().Add(opts.Timeout))

	sshConn, chans, reqs, err := xssh.NewClientConn(tcpConn, addr, config)
	if err != nil {
		_ = tcpConn.Close()
		return nil, classifyHandshakeError(addr, err)
	}
	_ = tcpConn.SetDeadline(time.Time{})

	return &Client{options: opts, conn: xssh.NewClient(sshConn, chans, reqs)}, nil
}

func classifyHandshakeError(addr string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") {
		return fmt.Errorf("%w: %s: %v", ErrAuthentication, addr, err)
	}
	return fmt.Errorf("%w: handshake with %s: %v", ErrConnectivity, addr, err)
}

// Exec runs a command in a fresh session and blocks until it exits or ctx
// expires. A non-zero exit status is reported in the Result, not as an
// error. On timeout the remote command receives a best-effort KILL and the
// call fails with a TimeoutError.
func (c *Client) Exec(ctx context.Context, cmd string) (*Result, error) {
	var bound time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		bound = time.Until(deadline).Round(time.Millisecond)
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: open session: %v", ErrConnectivity, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		// Best-effort termination of the tracked command only; children
		// not reparented to it are not guaranteed to be reaped.
		_ = session.Signal(xssh.SIGKILL)
		_ = session.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Command: cmd, Bound: bound}
		}
		return nil, ctx.Err()

	case err := <-done:
		result := &Result{
			Stdout: stdout.Bytes(),
			Stderr: stderr.Bytes(),
		}
		if err == nil {
			return result, nil
		}

		var exitErr *xssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitStatus = exitErr.ExitStatus()
			return result, nil
		}

		return nil, &ExecError{
			Command: cmd,
			Stdout:  stdout.Bytes(),
			Stderr:  stderr.Bytes(),
			Err:     err,
		}
	}
}

// SFTP opens a file-transfer subsystem client on the connection.
func (c *Client) SFTP() (*sftp.Client, error) {
	return sftp.NewClient(c.conn)
}

// Close tears down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
