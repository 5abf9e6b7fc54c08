package models

import (
	"errors"
	"regexp"
	"time"
)

// TaskState represents the observed state of a background task.
type TaskState string

const (
	// TaskStateRunning means the process is present in the remote process table.
	TaskStateRunning TaskState = "running"

	// TaskStateCompleted means the process is absent but its log file remains.
	TaskStateCompleted TaskState = "completed"

	// TaskStateUnknown means no log file exists for the task id on the host.
	TaskStateUnknown TaskState = "unknown"
)

// Task id validation errors.
var (
	ErrInvalidTaskID   = errors.New("task id must match [A-Za-z0-9][A-Za-z0-9_-]* and be at most 64 characters")
	ErrInvalidTaskName = errors.New("task name must match [A-Za-z0-9][A-Za-z0-9_-]* and be at most 48 characters")
	ErrInvalidPID      = errors.New("process id must be positive")
)

// Task ids are interpolated into remote shell commands, so the grammar is
// strict: no separators, no whitespace, no metacharacters.
var taskIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Task is a background remote job. The (ID, PID) pair is the sole durable
// handle: all state lives on the remote host as a process table entry plus
// a log file, never in controller memory.
type Task struct {
	// ID is the task identifier: {name or "task"}_{random hex suffix}.
	ID string `json:"task_id"`

	// PID is the remote OS process id of the detached process.
	PID int `json:"process_id"`

	// LogPath is the remote file holding the task's combined output.
	LogPath string `json:"log_path"`

	// Command is the command the task is running.
	Command string `json:"command"`

	// StartedAt is when the launch was confirmed.
	StartedAt time.Time `json:"started_at"`
}

// TaskStatus is the result of probing a task on its host.
type TaskStatus struct {
	// State is the observed lifecycle state.
	State TaskState `json:"state"`

	// LogTail holds the most recent log lines, oldest first.
	LogTail []string `json:"log_tail"`

	// TotalLines is the total line count of the log file.
	TotalLines int `json:"total_lines"`
}

// KillResult is the outcome of a termination request.
type KillResult struct {
	// OK reports whether the task is gone and cleanup was attempted.
	OK bool `json:"ok"`

	// AlreadyDead is true when the process was not running to begin with.
	AlreadyDead bool `json:"already_dead"`

	// Forced is true when a KILL signal was needed after the grace period.
	Forced bool `json:"forced,omitempty"`
}

// ExecResult captures a synchronous command run.
type ExecResult struct {
	// ExitStatus is the remote command's exit code.
	ExitStatus int `json:"exit_status"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`
}

// ValidateTaskID checks a task id against the id grammar.
func ValidateTaskID(id string) error {
	if id == "" || len(id) > 64 || !taskIDPattern.MatchString(id) {
		return ErrInvalidTaskID
	}
	return nil
}

// ValidateTaskName checks a caller-chosen task name prefix.
func ValidateTaskName(name string) error {
	if name == "" {
		return nil // optional, defaults to "task"
	}
	if len(name) > 48 || !taskIDPattern.MatchString(name) {
		return ErrInvalidTaskName
	}
	return nil
}

// ValidatePID checks a caller-supplied process id.
func ValidatePID(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	return nil
}
