package task

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/ssh"
)

// DefaultTailLines is how many log lines Status reports when the caller
// does not say otherwise.
const DefaultTailLines = 50

// Status probes the host for a previously launched task. A process absent
// from the process table is a completed task, not an error; a missing log
// file means the task id never existed on this host or was already cleaned
// up. Status needs no memory of the original command.
func Status(ctx context.Context, runner ssh.Runner, taskID string, pid int, tailLines int) (*models.TaskStatus, error) {
	if err := models.ValidateTaskID(taskID); err != nil {
		return nil, err
	}
	if err := models.ValidatePID(pid); err != nil {
		return nil, err
	}
	if tailLines <= 0 {
		tailLines = DefaultTailLines
	}

	logPath := LogPath(taskID)

	probe, err := runner.Exec(ctx, fmt.Sprintf("kill -0 %d 2>/dev/null && echo RUNNING || echo STOPPED", pid))
	if err != nil {
		return nil, err
	}
	running := strings.TrimSpace(string(probe.Stdout)) == "RUNNING"

	count, err := runner.Exec(ctx, fmt.Sprintf("if [ -f %s ]; then wc -l < %s; else echo MISSING; fi", logPath, logPath))
	if err != nil {
		return nil, err
	}
	countOut := strings.TrimSpace(string(count.Stdout))

	status := &models.TaskStatus{}
	switch {
	case running:
		status.State = models.TaskStateRunning
	case countOut != "MISSING":
		status.State = models.TaskStateCompleted
	default:
		status.State = models.TaskStateUnknown
	}

	if countOut == "MISSING" {
		return status, nil
	}

	total, convErr := strconv.Atoi(countOut)
	if convErr != nil {
		return nil, fmt.Errorf("unexpected line count %q for %s", countOut, logPath)
	}
	status.TotalLines = total

	// wc -l counts newlines, so a log whose only content is an
	// unterminated final line counts as zero. Tail unconditionally while
	// the file exists so that partial line still surfaces.
	tail, err := runner.Exec(ctx, fmt.Sprintf("tail -n %d %s 2>/dev/null", tailLines, logPath))
	if err != nil {
		return nil, err
	}
	status.LogTail = splitLogLines(string(tail.Stdout))

	return status, nil
}

// splitLogLines splits captured tail output into lines, oldest first,
// dropping the trailing newline's empty remainder.
func splitLogLines(out string) []string {
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}
