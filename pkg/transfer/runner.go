package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes the rclone binary
type Runner interface {
	// Run executes rclone with args, streaming its standard output to stdout
	Run(ctx context.Context, stdout io.Writer, args ...string) error
}

// ExecRunner runs rclone as a subprocess
type ExecRunner struct {
	Binary string
	Env    []string
}

// NewExecRunner creates a runner for the given binary, "rclone" when empty
func NewExecRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "rclone"
	}
	return &ExecRunner{Binary: binary}
}

// Run implements Runner. A non-zero exit returns an error carrying stderr.
func (r *ExecRunner) Run(ctx context.Context, stdout io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &CommandError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// CommandError reports a failed rclone invocation
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	cmd := "rclone"
	if len(e.Args) > 0 {
		cmd += " " + e.Args[0]
	}
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", cmd, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
