package task

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/ssh"
)

// Conn is the per-operation connection the service works over.
type Conn interface {
	ssh.Runner
	Close() error
}

// DialFunc opens a connection to an endpoint. The default uses ssh.Dial;
// tests substitute fakes.
type DialFunc func(ctx context.Context, endpoint models.Endpoint) (Conn, error)

// ServiceOptions configures connection and lifecycle defaults.
type ServiceOptions struct {
	// KeyPath is the private key used for all endpoints.
	KeyPath string

	// PassphrasePrompt is consulted for encrypted keys.
	PassphrasePrompt ssh.PassphrasePrompt

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// ExecTimeout bounds synchronous command runs when the caller does
	// not pass its own bound. Zero means no bound.
	ExecTimeout time.Duration

	// Grace is the wait between TERM and KILL during termination.
	Grace time.Duration

	// TailLines is the default status log tail length.
	TailLines int
}

// Service runs task operations against arbitrary endpoints. It holds no
// cross-call state: every operation dials, works, and hangs up.
type Service struct {
	opts   ServiceOptions
	dial   DialFunc
	logger zerolog.Logger
}

// NewService creates a task service.
func NewService(opts ServiceOptions, logger zerolog.Logger) *Service {
	s := &Service{opts: opts, logger: logger}
	s.dial = func(ctx context.Context, endpoint models.Endpoint) (Conn, error) {
		return ssh.Dial(ctx, ssh.ConnectionOptions{
			Host:             endpoint.Host,
			Port:             endpoint.Port,
			User:             endpoint.User,
			KeyPath:          opts.KeyPath,
			PassphrasePrompt: opts.PassphrasePrompt,
			Timeout:          opts.ConnectTimeout,
		})
	}
	return s
}

// SetDialFunc overrides how connections are opened. Used by tests.
func (s *Service) SetDialFunc(dial DialFunc) {
	s.dial = dial
}

// boundCtx bounds an operation's remote round trip with the exec timeout
// so a host that accepts the connect but then stalls cannot hang the
// caller indefinitely. Zero means no bound.
func (s *Service) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.ExecTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.ExecTimeout)
	}
	return ctx, func() {}
}

// Launch starts a detached background task on the endpoint.
func (s *Service) Launch(ctx context.Context, endpoint models.Endpoint, command, taskName string) (*models.Task, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	launched, err := Launch(ctx, conn, command, taskName)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("task_id", launched.ID).
		Int("pid", launched.PID).
		Str("endpoint", endpoint.String()).
		Msg("background task launched")
	return launched, nil
}

// Status probes a task's liveness and tails its log.
func (s *Service) Status(ctx context.Context, endpoint models.Endpoint, taskID string, pid, tailLines int) (*models.TaskStatus, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}
	if tailLines <= 0 {
		tailLines = s.opts.TailLines
	}
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return Status(ctx, conn, taskID, pid, tailLines)
}

// Kill terminates a task and removes its artifacts.
func (s *Service) Kill(ctx context.Context, endpoint models.Endpoint, taskID string, pid int) (*models.KillResult, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	result, err := Kill(ctx, conn, taskID, pid, s.opts.Grace)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Int("pid", pid).
		Bool("already_dead", result.AlreadyDead).
		Bool("forced", result.Forced).
		Msg("background task killed")
	return result, nil
}

// Exec runs a command synchronously on the endpoint and returns its exit
// status and captured output. timeout overrides the service default; zero
// means use the default.
func (s *Service) Exec(ctx context.Context, endpoint models.Endpoint, command string, timeout time.Duration) (*models.ExecResult, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}
	if timeout == 0 {
		timeout = s.opts.ExecTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	result, err := conn.Exec(ctx, command)
	if err != nil {
		return nil, err
	}
	return &models.ExecResult{
		ExitStatus: result.ExitStatus,
		Stdout:     string(result.Stdout),
		Stderr:     string(result.Stderr),
	}, nil
}

// FetchLog downloads a task's full remote log into w.
func (s *Service) FetchLog(ctx context.Context, endpoint models.Endpoint, taskID string, w io.Writer) (int64, error) {
	if err := endpoint.Validate(); err != nil {
		return 0, err
	}
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	opener, ok := conn.(SFTPOpener)
	if !ok {
		return 0, errors.New("connection does not support file transfer")
	}
	return FetchLog(ctx, opener, taskID, w)
}
