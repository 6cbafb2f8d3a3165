package encoder

import (
	"context"
	"os/exec"
)

// Runner executes an external tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandRunner runs commands with os/exec.
type CommandRunner struct{}

func NewCommandRunner() *CommandRunner {
	return &CommandRunner{}
}

func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Available reports whether name resolves to an executable.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
