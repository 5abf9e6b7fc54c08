package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gpurig/rig/internal/models"
)

func TestKillGraceful(t *testing.T) {
	runner := &scriptedRunner{t: t, steps: []scriptedStep{
		{wantSubstr: "kill -0 4711", stdout: "RUNNING\n"},
		{wantSubstr: "kill 4711", stdout: "TERMINATED\n"},
		{wantSubstr: "rm -f", stdout: ""},
	}}

	result, err := Kill(context.Background(), runner, "t_a1b2c3d4", 4711, 2*time.Second)
	require.NoError(t, err)
	runner.done()

	require.True(t, result.OK)
	require.False(t, result.AlreadyDead)
	require.False(t, result.Forced)

	// Grace period is embedded in the kill script.
	require.Contains(t, runner.commands[1], "sleep 2")
	require.Contains(t, runner.commands[1], "kill -9 4711")
	require.Contains(t, runner.commands[2], LogPath("t_a1b2c3d4"))
	require.Contains(t, runner.commands[2], PIDPath("t_a1b2c3d4"))
}

func TestKillForced(t *testing.T) {
	runner := &scriptedRunner{t: t, steps: []scriptedStep{
		{wantSubstr: "kill -0", stdout: "RUNNING\n"},
		{wantSubstr: "kill 4711", stdout: "FORCE_KILLED\n"},
		{wantSubstr: "rm -f", stdout: ""},
	}}

	result, err := Kill(context.Background(), runner, "t_a1b2c3d4", 4711, time.Second)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.True(t, result.Forced)
}

func TestKillAlreadyDeadIsIdempotent(t *testing.T) {
	// Second invocation on an already-terminated-and-cleaned task:
	// no process, rm -f of absent files still exits zero.
	runner := &scriptedRunner{t: t, steps: []scriptedStep{
		{wantSubstr: "kill -0", stdout: "STOPPED\n"},
		{wantSubstr: "rm -f", stdout: ""},
	}}

	result, err := Kill(context.Background(), runner, "t_a1b2c3d4", 4711, time.Second)
	require.NoError(t, err)
	runner.done()

	require.True(t, result.OK)
	require.True(t, result.AlreadyDead)
	require.False(t, result.Forced)
}

func TestKillCleanupFailure(t *testing.T) {
	runner := &scriptedRunner{t: t, steps: []scriptedStep{
		{wantSubstr: "kill -0", stdout: "RUNNING\n"},
		{wantSubstr: "kill 4711", stdout: "TERMINATED\n"},
		{wantSubstr: "rm -f", exit: 1, stderr: "rm: cannot remove: Read-only file system"},
	}}

	_, err := Kill(context.Background(), runner, "t_a1b2c3d4", 4711, time.Second)
	require.ErrorIs(t, err, ErrPartialFailure)
}

func TestKillRejectsBadInput(t *testing.T) {
	runner := &scriptedRunner{t: t}

	_, err := Kill(context.Background(), runner, "`reboot`", 4711, time.Second)
	require.ErrorIs(t, err, models.ErrInvalidTaskID)

	_, err = Kill(context.Background(), runner, "t_a1b2c3d4", -1, time.Second)
	require.ErrorIs(t, err, models.ErrInvalidPID)

	require.Empty(t, runner.commands)
}

func TestKillProbeError(t *testing.T) {
	boom := errors.New("dial tcp: timeout")
	runner := &scriptedRunner{t: t, steps: []scriptedStep{{err: boom}}}
	_, err := Kill(context.Background(), runner, "t_a1b2c3d4", 4711, time.Second)
	require.ErrorIs(t, err, boom)
}
