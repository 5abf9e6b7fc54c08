package task

import (
	"context"
	"strings"
	"testing"

	"github.com/gpurig/rig/internal/ssh"
)

// scriptedRunner pops canned results in call order, asserting each command
// contains the expected fragment.
type scriptedRunner struct {
	t        *testing.T
	steps    []scriptedStep
	commands []string
}

type scriptedStep struct {
	wantSubstr string
	stdout     string
	stderr     string
	exit       int
	err        error
}

func (r *scriptedRunner) Exec(ctx context.Context, cmd string) (*ssh.Result, error) {
	r.t.Helper()
	r.commands = append(r.commands, cmd)
	if len(r.steps) == 0 {
		r.t.Fatalf("unexpected command: %q", cmd)
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	if step.wantSubstr != "" && !strings.Contains(cmd, step.wantSubstr) {
		r.t.Fatalf("command %q does not contain %q", cmd, step.wantSubstr)
	}
	if step.err != nil {
		return nil, step.err
	}
	return &ssh.Result{
		ExitStatus: step.exit,
		Stdout:     []byte(step.stdout),
		Stderr:     []byte(step.stderr),
	}, nil
}

func (r *scriptedRunner) Close() error { return nil }

func (r *scriptedRunner) done() {
	r.t.Helper()
	if len(r.steps) != 0 {
		r.t.Fatalf("%d scripted steps left unconsumed", len(r.steps))
	}
}
