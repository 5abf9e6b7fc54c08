// Package task launches, probes and terminates detached background jobs on
// remote hosts. The controller keeps no registry: a task's only durable
// handle is its (task_id, process_id) pair, and every operation rediscovers
// state from the host's process table and the artifact files below.
package task

import (
	"fmt"
	"strings"
)

// Artifacts live under a fixed convention so a caller who only knows the
// task id can always find them again.
const artifactDir = "/tmp"

// LogPath returns the remote log file path for a task id.
func LogPath(taskID string) string {
	return fmt.Sprintf("%s/rig_task_%s.log", artifactDir, taskID)
}

// PIDPath returns the remote pid-marker file path for a task id.
func PIDPath(taskID string) string {
	return fmt.Sprintf("%s/rig_task_%s.pid", artifactDir, taskID)
}

// shellQuote wraps s in single quotes, escaping embedded single quotes so
// the result is safe to splice into a remote shell command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
