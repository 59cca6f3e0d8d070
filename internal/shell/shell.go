// Package shell runs screen-oriented CL commands through the line-mode
// `system` utility of PASE on the local machine. It is for powerexec running
// on the host itself; remote callers send screen commands through the
// toolkit instead. Those commands page their output to a display rather than
// return it, and `system` turns that display into plain text.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	perrors "powerexec/cli/internal/errors"
	"powerexec/cli/internal/logging"
	"powerexec/cli/internal/rc"

	"go.uber.org/zap"
)

// DefaultBinary is the PASE command that runs a CL command.
const DefaultBinary = "system"

// DefaultTimeout bounds one command.
const DefaultTimeout = 10 * time.Minute

// maxOutput caps the captured bytes per stream.
const maxOutput = 8 << 20

// Result is the outcome of one shell invocation.
type Result struct {
	RC     rc.Code
	Stdout string
	Stderr string
}

// Runner runs commands through Binary.
type Runner struct {
	Binary  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewRunner returns a Runner for `system` with the default timeout.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Binary: DefaultBinary, Timeout: DefaultTimeout, Logger: logger}
}

// Run executes `<binary> <command>`. A non-zero exit status is reported in
// Result.RC, not as an error; the error is reserved for a binary that cannot
// be started.
func (r *Runner) Run(ctx context.Context, command string) (Result, error) {
	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return Result{}, perrors.Wrap(perrors.DependencyUnavailable,
			fmt.Sprintf("%s utility not found, screen commands need it", binary), err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, path, command)
	var stdout, stderr limitedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("running screen command through line-mode utility",
		zap.String("binary", binary), zap.String("command", logging.Mask(command)))
	start := time.Now()
	err = cmd.Run()

	res := Result{RC: rc.Success, Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			res.RC = rc.Unexpected
			res.Stderr = strings.TrimSpace(res.Stderr + "\n" + fmt.Sprintf("command timed out after %s", timeout))
		case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
			res.RC = rc.Code(exitErr.ExitCode())
		default:
			res.RC = rc.Unexpected
			res.Stderr = strings.TrimSpace(res.Stderr + "\n" + err.Error())
		}
	}
	logger.Debug("screen command finished", zap.Int("rc", int(res.RC)), zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// limitedBuffer keeps the first maxOutput bytes and drops the rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := maxOutput - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
