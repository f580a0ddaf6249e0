package scheduler

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandResult is the outcome of running an external command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. The production implementation shells
// out to sbatch/scontrol; tests substitute a fake so the circuit breaker and
// parsing logic can be exercised without a real scheduler.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ErrCommandNotFound distinguishes "binary missing" from a non-zero exit,
// per spec §4.1 ("command-not-found and timeout are distinct failure kinds
// from non-zero exit").
var ErrCommandNotFound = errors.New("scheduler command not found")

// ErrCommandTimeout is returned when ctx's deadline elapses before the
// command exits.
var ErrCommandTimeout = errors.New("scheduler command timed out")

// execRunner is the production Runner, invoking real OS processes.
type execRunner struct{}

// NewExecRunner returns the production command runner.
func NewExecRunner() Runner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}, ErrCommandTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return CommandResult{
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				ExitCode: exitErr.ExitCode(),
			}, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return CommandResult{}, ErrCommandNotFound
		}
		return CommandResult{}, ErrCommandNotFound
	}
	return CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: 0}, nil
}
