// Package toolchain runs compilers as isolated subprocesses and reports what
// they did: exit status, captured output, timeouts and crashes.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultWaitDelay bounds how long Execute waits for output pipes after the
// process has been killed.
const DefaultWaitDelay = 2 * time.Second

// Command describes one subprocess invocation.
type Command struct {
	Path string   // resolved executable
	Args []string // arguments, excluding the executable
	Env  []string // full environment; nil inherits the caller's
	Dir  string
}

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Signaled bool          `json:"signaled,omitempty"` // terminated by a signal rather than exiting
	State    string        `json:"state,omitempty"`    // os.ProcessState description, e.g. "signal: killed"
	Duration time.Duration `json:"duration"`
}

// CommandExecutor abstracts subprocess execution so compilers can be driven
// by a fake in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd Command) (*CommandResult, error)
}

// RealExecutor runs commands via os/exec. Each command gets its own process
// group so that cancellation also reaches grandchildren (compiler drivers
// commonly fork the real compiler).
type RealExecutor struct {
	WaitDelay time.Duration // defaults to DefaultWaitDelay
}

// Execute runs cmd and waits for it. A non-zero exit or a signal is reported
// in the result; the error is only non-nil when the process could not be
// started or waited on.
func (r *RealExecutor) Execute(ctx context.Context, c Command) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.State = exitErr.ProcessState.String()
		// ExitCode is -1 when the process was terminated by a signal.
		result.Signaled = result.ExitCode == -1
		return result, nil
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The process exited but left its output pipes open (an orphaned
		// grandchild); the exit status is still authoritative.
		result.ExitCode = cmd.ProcessState.ExitCode()
		result.State = cmd.ProcessState.String()
		return result, nil
	}
	return result, fmt.Errorf("execute %q: %w", c.Path, err)
}
