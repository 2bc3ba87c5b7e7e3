package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// waitDelay bounds how long Wait keeps draining pipes after the child is
// killed, in case a grandchild inherited them.
const waitDelay = 500 * time.Millisecond

// LocalSandbox runs commands as direct child processes of this one.
type LocalSandbox struct {
	Policy Policy
}

// NewLocalSandbox creates a sandbox with the given policy. Zero limits
// take their DefaultPolicy values.
func NewLocalSandbox(policy Policy) *LocalSandbox {
	return &LocalSandbox{Policy: policy.WithDefaults()}
}

func (l *LocalSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	return run(ctx, l.Policy, opts)
}

func run(ctx context.Context, policy Policy, opts ExecOpts) (*ExecResult, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("empty command")
	}
	timeout, maxLines, maxChars := policy.limits(opts)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.WaitDelay = waitDelay

	// exec copies Stdin from a goroutine and closes the pipe afterwards,
	// ignoring EPIPE, so a child that never reads cannot stall us.
	cmd.Stdin = strings.NewReader(opts.Stdin)

	stdout := newCappedWriter(maxLines, maxChars)
	stderr := newCappedWriter(0, maxChars)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", opts.Command[0], err)
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	res := &ExecResult{Duration: elapsed}
	res.Stdout, res.StdoutTruncated = truncate(stdout.String(), maxChars)
	res.Stderr, _ = truncate(stderr.String(), maxChars)

	// Caller cancellation wins over our own deadline.
	if ctx.Err() != nil {
		return res, fmt.Errorf("running %s: %w", opts.Command[0], ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, fmt.Errorf("running %s: %w", opts.Command[0], waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
		// Report signal deaths the way a shell does: 128 + signal number.
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			res.ExitCode = 128 + int(ws.Signal())
			res.Signal = ws.Signal().String()
		}
	}
	return res, nil
}
