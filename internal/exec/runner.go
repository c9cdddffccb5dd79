package exec

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner runs external tools such as ffmpeg and ffprobe
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error)
}

type CommandRunner struct{}

func NewCommandRunner() *CommandRunner {
	return &CommandRunner{}
}

// Run returns stdout; stderr is folded into the error on failure
func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.run(exec.CommandContext(ctx, name, args...))
}

func (r *CommandRunner) RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	return r.run(cmd)
}

func (r *CommandRunner) run(cmd *exec.Cmd) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &Error{Err: err, Stderr: tail(stderr.String(), 1024)}
	}
	return stdout.Bytes(), nil
}

// Error wraps a failed command with the end of its stderr
type Error struct {
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Stderr
}

func (e *Error) Unwrap() error { return e.Err }

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
