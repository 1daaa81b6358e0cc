// Package process runs external command-line tools.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fgeck/pgbackuper/internal/models"
	"github.com/rs/zerolog"
)

// Runner runs an executable to completion and returns its stdout.
type Runner interface {
	Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

// ToolError describes a tool that failed to start or exited non-zero.
type ToolError struct {
	Tool     string
	ExitCode int // -1 when the process never ran to an exit status
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap exposes both the error kind and the underlying cause.
func (e *ToolError) Unwrap() []error {
	return []error{models.ErrToolExecution, e.Err}
}

// ExecRunner is the default Runner using os/exec.
type ExecRunner struct {
	logger zerolog.Logger
}

// New creates a new ExecRunner.
func New(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run executes name with args. env is appended to the parent environment.
func (r *ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().
		Str("tool", name).
		Strs("args", args).
		Msg("running external tool")

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return stdout.Bytes(), &ToolError{
			Tool:     name,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	return stdout.Bytes(), nil
}
