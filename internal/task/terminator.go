package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/ssh"
)

// DefaultGrace is the bounded wait between the graceful TERM signal and
// the forceful KILL.
const DefaultGrace = 2 * time.Second

// Kill stops a task: TERM first, a bounded grace period, then KILL if the
// process is still alive. The log and pid-marker artifacts are removed
// afterward regardless of whether the process was already dead, so calling
// Kill twice on the same handle succeeds both times, reporting
// AlreadyDead on the second call.
func Kill(ctx context.Context, runner ssh.Runner, taskID string, pid int, grace time.Duration) (*models.KillResult, error) {
	if err := models.ValidateTaskID(taskID); err != nil {
		return nil, err
	}
	if err := models.ValidatePID(pid); err != nil {
		return nil, err
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	graceSeconds := int(grace.Round(time.Second).Seconds())
	if graceSeconds < 1 {
		graceSeconds = 1
	}

	result := &models.KillResult{}

	probe, err := runner.Exec(ctx, fmt.Sprintf("kill -0 %d 2>/dev/null && echo RUNNING || echo STOPPED", pid))
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(string(probe.Stdout)) == "RUNNING" {
		script := strings.Join([]string{
			fmt.Sprintf("kill %d 2>/dev/null", pid),
			fmt.Sprintf("sleep %d", graceSeconds),
			fmt.Sprintf("if kill -0 %d 2>/dev/null; then kill -9 %d 2>/dev/null; echo FORCE_KILLED; else echo TERMINATED; fi", pid, pid),
		}, "\n")

		killed, err := runner.Exec(ctx, script)
		if err != nil {
			return nil, err
		}
		result.Forced = strings.TrimSpace(string(killed.Stdout)) == "FORCE_KILLED"
	} else {
		result.AlreadyDead = true
	}

	cleanup, err := runner.Exec(ctx, fmt.Sprintf("rm -f %s %s", LogPath(taskID), PIDPath(taskID)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPartialFailure, err)
	}
	if cleanup.ExitStatus != 0 {
		return nil, fmt.Errorf("%w: rm exited %d: %s",
			ErrPartialFailure, cleanup.ExitStatus, strings.TrimSpace(string(cleanup.Stderr)))
	}

	result.OK = true
	return result, nil
}
