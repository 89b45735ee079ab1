// Package local implements the remote executor port for the host this binary
// runs on, for use when the tool is launched directly on the Veeam server.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/ericfisherdev/veeamdump/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RemoteExecutor = (*Executor)(nil)

// waitDelay bounds how long output pipes may stay open after the shell exits.
const waitDelay = 2 * time.Second

// Executor runs commands through the platform shell.
type Executor struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor creates an Executor. A zero timeout means commands run until
// ctx is done.
func NewExecutor(timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{timeout: timeout, logger: logger}
}

// ExecuteCommand runs command and returns stdout followed by stderr. A
// non-zero exit status is not an error: callers inspect the text, the way an
// interactive session would. Failure to start the process is.
func (e *Executor) ExecuteCommand(ctx context.Context, command string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := shellCommand(ctx, command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("command interrupted: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("start command: %w", err)
	}
	if exitErr != nil {
		e.logger.Debug("command exited non-zero", "exit_code", exitErr.ExitCode())
	}
	return stdout.String() + stderr.String(), nil
}

// ReadFile reads a file from the local filesystem.
func (e *Executor) ReadFile(_ context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

// FileExists reports whether path is an existing regular file.
func (e *Executor) FileExists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}
