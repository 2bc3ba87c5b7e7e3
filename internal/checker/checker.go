// Package checker compiles untrusted C submissions, runs them against
// input/output test cases and produces a verdict.
//
// Every check gets its own workspace directory, so concurrent checks need
// no locking. Tests within one check run sequentially.
package checker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/sandbox"
)

const (
	// MsgEmptySource is the verdict message for blank submissions.
	MsgEmptySource = "code cannot be empty"
	// MsgInterrupted is the verdict message when the caller cancelled the check.
	MsgInterrupted = "check interrupted"
)

// Options configures a Checker.
type Options struct {
	CompilerPath  string // default "gcc"
	WorkspaceRoot string // default os.TempDir()
	Sandbox       sandbox.Sandbox
	Policy        sandbox.Policy // zero fields take sandbox.DefaultPolicy values
	Logger        *zap.SugaredLogger
}

// Request is one submission to check.
type Request struct {
	Source    string
	TestsJSON string
	// MaxOutputChars overrides the policy's stdout cap for this check when > 0.
	MaxOutputChars int
}

// Progress receives intermediate results while a check runs. Nil fields are skipped.
type Progress struct {
	Compiled func(outcome CompilationOutcome)
	TestDone func(number, total int, result TestExecutionResult)
}

// Checker is safe for concurrent use.
type Checker struct {
	compiler *Compiler
	runner   *Runner
	root     string
	logger   *zap.SugaredLogger
}

// New creates a Checker. A nil Sandbox means a local sandbox with opts.Policy.
func New(opts Options) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	policy := opts.Policy.WithDefaults()
	sb := opts.Sandbox
	if sb == nil {
		sb = sandbox.NewLocalSandbox(policy)
	}
	return &Checker{
		compiler: NewCompiler(opts.CompilerPath, sb, policy.CompileTimeout, logger),
		runner:   NewRunner(sb, policy.RunTimeout, logger),
		root:     opts.WorkspaceRoot,
		logger:   logger,
	}
}

// CompilerAvailable runs the configured compiler with --version.
func (c *Checker) CompilerAvailable(ctx context.Context) bool {
	return c.compiler.Available(ctx)
}

// CompilerPath returns the configured compiler executable.
func (c *Checker) CompilerPath() string {
	return c.compiler.Path
}

// CheckCode compiles source and runs it against the tests in testsJSON.
func (c *Checker) CheckCode(ctx context.Context, source, testsJSON string) Verdict {
	return c.Check(ctx, Request{Source: source, TestsJSON: testsJSON}, nil)
}

// Check runs a full check and always returns a complete verdict; nothing
// below this call escapes as an error or panic.
func (c *Checker) Check(ctx context.Context, req Request, progress *Progress) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("Check panicked", "panic", r)
			verdict = ErrorVerdict(fmt.Sprintf("system error: %v", r))
		}
	}()

	if strings.TrimSpace(req.Source) == "" {
		return ErrorVerdict(MsgEmptySource)
	}
	if ctx.Err() != nil {
		return InterruptedVerdict()
	}

	if !c.compiler.Available(ctx) {
		c.logger.Errorw("C compiler not available", "compiler", c.compiler.Path)
		return ErrorVerdict(toolchainMessage(c.compiler.Path))
	}

	tests := ParseTestCases(req.TestsJSON)

	verdict, err := WithWorkspace(c.root, c.logger, func(ws *Workspace) Verdict {
		return c.checkIn(ctx, ws, req, tests, progress)
	})
	if err != nil {
		c.logger.Errorw("Check failed", "error", err)
		return ErrorVerdict(fmt.Sprintf("system error: %v", err))
	}

	// Results gathered after cancellation say nothing about the program.
	if ctx.Err() != nil {
		c.logger.Warnw("Check interrupted", "error", ctx.Err())
		return InterruptedVerdict()
	}

	c.logger.Infow("Check finished",
		"status", verdict.Status,
		"passed", verdict.TestsPassed,
		"total", verdict.TestsTotal,
	)
	return verdict
}

func (c *Checker) checkIn(ctx context.Context, ws *Workspace, req Request, tests []TestCase, progress *Progress) Verdict {
	source := ws.Path(SourceName)
	if err := os.WriteFile(source, []byte(req.Source), 0o644); err != nil {
		return ErrorVerdict(fmt.Sprintf("system error: writing source: %v", err))
	}

	outcome := c.compiler.Compile(ctx, source, ws.Dir)
	if progress != nil && progress.Compiled != nil {
		progress.Compiled(outcome)
	}
	if !outcome.Success {
		return Aggregate(outcome, nil)
	}

	if len(tests) == 0 {
		c.logger.Warnw("No test cases found")
		return Aggregate(outcome, nil)
	}
	c.logger.Infow("Running tests", "count", len(tests))

	executable := ws.Path(BinaryName)
	results := make([]TestExecutionResult, 0, len(tests))
	for i, tc := range tests {
		if ctx.Err() != nil {
			break
		}
		c.logger.Debugw("Running test", "number", i+1, "total", len(tests))
		res := c.runner.RunOne(ctx, executable, tc, req.MaxOutputChars)
		results = append(results, res)
		if progress != nil && progress.TestDone != nil {
			progress.TestDone(i+1, len(tests), res)
		}
	}
	return Aggregate(outcome, results)
}

func toolchainMessage(compiler string) string {
	return fmt.Sprintf("C compiler %q not found. Install it to check code:\n"+
		"macOS: brew install gcc\n"+
		"Linux: sudo apt-get install gcc", compiler)
}
