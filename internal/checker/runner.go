package checker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/sandbox"
)

// TestExecutionResult is the outcome of running one test case.
type TestExecutionResult struct {
	Passed         bool   `json:"passed"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	TimedOut       bool   `json:"timedOut,omitempty"`
}

// Runner executes a compiled submission once per test case.
type Runner struct {
	sandbox sandbox.Sandbox
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewRunner creates a runner enforcing timeout on every test.
func NewRunner(sb sandbox.Sandbox, timeout time.Duration, logger *zap.SugaredLogger) *Runner {
	return &Runner{sandbox: sb, timeout: timeout, logger: logger}
}

// RunOne feeds tc.Input to the executable and compares its output with
// tc.ExpectedOutput. maxChars overrides the policy's output cap when > 0.
// RunOne never panics or returns an error; every failure is described in
// the result.
func (r *Runner) RunOne(ctx context.Context, executable string, tc TestCase, maxChars int) TestExecutionResult {
	failed := func(actual, msg string) TestExecutionResult {
		return TestExecutionResult{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			ActualOutput:   actual,
			ErrorMessage:   msg,
		}
	}

	if _, err := os.Stat(executable); err != nil {
		r.logger.Errorw("Executable not found", "path", executable)
		return failed("", "executable not found after compilation")
	}

	res, err := r.sandbox.Exec(ctx, sandbox.ExecOpts{
		Command:        []string{executable},
		Dir:            filepath.Dir(executable),
		Stdin:          tc.Input,
		Timeout:        r.timeout,
		MaxOutputChars: maxChars,
	})
	if err != nil {
		if ctx.Err() != nil {
			return failed("", "execution interrupted")
		}
		return failed("", fmt.Sprintf("execution error: %v", err))
	}

	if res.TimedOut {
		out := failed(res.Stdout, fmt.Sprintf("execution timed out (exceeded %s)", r.timeout))
		out.TimedOut = true
		return out
	}

	if res.ExitCode != 0 {
		msg := fmt.Sprintf("program exited with code %d", res.ExitCode)
		if res.Signal != "" {
			msg += " (" + res.Signal + ")"
		}
		if res.Stderr != "" {
			msg += "\nstderr: " + res.Stderr
		}
		return failed(res.Stdout, msg)
	}

	actual := Normalize(res.Stdout)
	expected := Normalize(tc.ExpectedOutput)
	result := TestExecutionResult{
		Passed:         actual == expected,
		Input:          tc.Input,
		ExpectedOutput: expected,
		ActualOutput:   actual,
	}
	if !result.Passed {
		result.ErrorMessage = fmt.Sprintf("expected: '%s', got: '%s'", displayText(expected), displayText(actual))
	}
	return result
}
