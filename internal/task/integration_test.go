package task

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpurig/rig/internal/logging"
	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/testutil"
)

// parseTarget splits a user@host:port integration target into an endpoint.
func parseTarget(t *testing.T, target string) models.Endpoint {
	t.Helper()
	user := "root"
	rest := target
	if at := strings.Index(target, "@"); at >= 0 {
		user = target[:at]
		rest = target[at+1:]
	}
	host, portStr, err := net.SplitHostPort(rest)
	require.NoError(t, err, "target must be [user@]host:port")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return models.Endpoint{Host: host, Port: port, User: user}
}

// TestTaskLifecycleAgainstRealHost launches a real background task over SSH,
// probes it while running, waits for completion, then verifies kill is a
// clean no-op on the dead process and removes the remote artifacts.
func TestTaskLifecycleAgainstRealHost(t *testing.T) {
	endpoint := parseTarget(t, testutil.SSHTarget(t))
	keyPath := testutil.SSHKeyPath(t)

	svc := NewService(ServiceOptions{
		KeyPath:        keyPath,
		ConnectTimeout: 15 * time.Second,
		ExecTimeout:    30 * time.Second,
		Grace:          2 * time.Second,
		TailLines:      50,
	}, logging.Component("task-test"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	launched, err := svc.Launch(ctx, endpoint, "sleep 2 && echo lifecycle-done", "")
	require.NoError(t, err)
	require.NotEmpty(t, launched.ID)
	require.Greater(t, launched.PID, 0)

	status, err := svc.Status(ctx, endpoint, launched.ID, launched.PID, 10)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateRunning, status.State)

	// Let the command finish, then the probe must flip to completed and
	// the tail must carry the marker line.
	deadline := time.Now().Add(30 * time.Second)
	for {
		status, err = svc.Status(ctx, endpoint, launched.ID, launched.PID, 10)
		require.NoError(t, err)
		if status.State == models.TaskStateCompleted || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Second)
	}
	require.Equal(t, models.TaskStateCompleted, status.State)
	assert.Contains(t, status.LogTail, "lifecycle-done")

	var log bytes.Buffer
	_, err = svc.FetchLog(ctx, endpoint, launched.ID, &log)
	require.NoError(t, err)
	assert.Contains(t, log.String(), "lifecycle-done")

	result, err := svc.Kill(ctx, endpoint, launched.ID, launched.PID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.True(t, result.AlreadyDead)

	// Second kill on the same handle stays clean.
	result, err = svc.Kill(ctx, endpoint, launched.ID, launched.PID)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

// TestKillRunningTaskAgainstRealHost terminates a live long-running task.
func TestKillRunningTaskAgainstRealHost(t *testing.T) {
	endpoint := parseTarget(t, testutil.SSHTarget(t))
	keyPath := testutil.SSHKeyPath(t)

	svc := NewService(ServiceOptions{
		KeyPath:        keyPath,
		ConnectTimeout: 15 * time.Second,
		Grace:          2 * time.Second,
		TailLines:      50,
	}, logging.Component("task-test"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	launched, err := svc.Launch(ctx, endpoint, "sleep 300", "long-sleeper")
	require.NoError(t, err)

	result, err := svc.Kill(ctx, endpoint, launched.ID, launched.PID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.False(t, result.AlreadyDead)

	status, err := svc.Status(ctx, endpoint, launched.ID, launched.PID, 5)
	require.NoError(t, err)
	assert.NotEqual(t, models.TaskStateRunning, status.State)
}

// TestExecAgainstRealHost runs a synchronous command and checks the output.
func TestExecAgainstRealHost(t *testing.T) {
	endpoint := parseTarget(t, testutil.SSHTarget(t))
	keyPath := testutil.SSHKeyPath(t)

	svc := NewService(ServiceOptions{
		KeyPath:        keyPath,
		ConnectTimeout: 15 * time.Second,
	}, logging.Component("task-test"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := svc.Exec(ctx, endpoint, "echo exec-probe", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitStatus)
	assert.Contains(t, result.Stdout, "exec-probe")
}
