package task

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/ssh"
)

// suffixHexLen is the length of the random task id suffix. Eight hex chars
// make collisions between concurrently launched tasks practically
// impossible.
const suffixHexLen = 8

// NewTaskID generates a task id from an optional caller-chosen name.
func NewTaskID(taskName string) (string, error) {
	if err := models.ValidateTaskName(taskName); err != nil {
		return "", err
	}
	if taskName == "" {
		taskName = "task"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixHexLen]
	return taskName + "_" + suffix, nil
}

// Launch starts command as a detached process on the host behind runner.
// The command keeps running after both the session and this call end; its
// combined output is redirected to the task's log file and its pid is
// written to a marker file, then echoed back so the caller gets the handle
// immediately. Launch returns as soon as the pid is confirmed and never
// waits for the command to produce output or finish.
func Launch(ctx context.Context, runner ssh.Runner, command, taskName string) (*models.Task, error) {
	if strings.TrimSpace(command) == "" {
		return nil, &models.ValidationError{Field: "command", Message: "command is required"}
	}

	taskID, err := NewTaskID(taskName)
	if err != nil {
		return nil, err
	}

	logPath := LogPath(taskID)
	pidPath := PIDPath(taskID)

	// The wrapper shell writes its own pid before exec'ing into the
	// command body, so the pid file doubles as a recovery path when the
	// returned pid is lost in transit.
	body := fmt.Sprintf("echo $$ > %s\n%s", pidPath, command)
	wrapper := strings.Join([]string{
		fmt.Sprintf("nohup bash -c %s > %s 2>&1 &", shellQuote(body), logPath),
		"sleep 0.1",
		fmt.Sprintf("cat %s 2>/dev/null", pidPath),
	}, "\n")

	result, err := runner.Exec(ctx, wrapper)
	if err != nil {
		return nil, err
	}

	out := strings.TrimSpace(string(result.Stdout))
	pid, convErr := strconv.Atoi(out)
	if result.ExitStatus != 0 || convErr != nil || pid <= 0 {
		return nil, &LaunchError{
			Command: command,
			Output:  out,
			Stderr:  strings.TrimSpace(string(result.Stderr)),
		}
	}

	return &models.Task{
		ID:        taskID,
		PID:       pid,
		LogPath:   logPath,
		Command:   command,
		StartedAt: time.Now().UTC(),
	}, nil
}
