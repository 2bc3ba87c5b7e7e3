package checker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/sandbox"
)

const (
	// SourceName and BinaryName are the fixed file names inside a workspace.
	SourceName = "solution.c"
	BinaryName = "solution"

	versionTimeout = 2 * time.Second

	// Compiler diagnostics are not subject to the program output caps.
	diagnosticLines = 1 << 16
	diagnosticChars = 1 << 20
)

var compileFlags = []string{"-std=c11", "-Wall", "-Wextra", "-O2"}

// CompilationOutcome is the result of one compiler run. Diagnostic is
// empty on success, even if the compiler printed warnings.
type CompilationOutcome struct {
	Success    bool   `json:"success"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Compiler drives an external C compiler through a sandbox.
type Compiler struct {
	Path    string // compiler executable, looked up on PATH
	sandbox sandbox.Sandbox
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewCompiler creates a compiler driver. path defaults to "gcc".
func NewCompiler(path string, sb sandbox.Sandbox, timeout time.Duration, logger *zap.SugaredLogger) *Compiler {
	if path == "" {
		path = "gcc"
	}
	return &Compiler{Path: path, sandbox: sb, timeout: timeout, logger: logger}
}

// Compile builds sourcePath into workDir/solution. It never fails with an
// error: launch failures, timeouts and cancellation are all reported as an
// unsuccessful outcome.
func (c *Compiler) Compile(ctx context.Context, sourcePath, workDir string) CompilationOutcome {
	args := append([]string{c.Path, "-o", BinaryName, filepath.Base(sourcePath)}, compileFlags...)

	c.logger.Debugw("Compiling", "source", sourcePath)
	res, err := c.sandbox.Exec(ctx, sandbox.ExecOpts{
		Command:        args,
		Dir:            workDir,
		Timeout:        c.timeout,
		MaxStdoutLines: diagnosticLines,
		MaxOutputChars: diagnosticChars,
	})
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Warnw("Compilation interrupted", "error", err)
			return CompilationOutcome{Diagnostic: "compilation interrupted"}
		}
		c.logger.Errorw("Compiler failed to start", "compiler", c.Path, "error", err)
		return CompilationOutcome{Diagnostic: fmt.Sprintf("compilation error: %v", err)}
	}

	if res.TimedOut {
		c.logger.Warnw("Compilation timed out", "timeout", c.timeout)
		return CompilationOutcome{Diagnostic: fmt.Sprintf("compilation timed out (exceeded %s)", c.timeout)}
	}

	if res.ExitCode != 0 {
		diag := joinStreams(res.Stderr, res.Stdout)
		if diag == "" {
			diag = fmt.Sprintf("compilation failed (exit code %d)", res.ExitCode)
		}
		c.logger.Infow("Compilation failed", "exit_code", res.ExitCode)
		return CompilationOutcome{Diagnostic: diag}
	}

	c.logger.Debugw("Compilation succeeded")
	return CompilationOutcome{Success: true}
}

// Available reports whether the compiler can be launched at all.
func (c *Compiler) Available(ctx context.Context) bool {
	res, err := c.sandbox.Exec(ctx, sandbox.ExecOpts{
		Command: []string{c.Path, "--version"},
		Timeout: versionTimeout,
	})
	return err == nil && !res.TimedOut && res.ExitCode == 0
}

// joinStreams concatenates stderr then stdout, one newline between them.
func joinStreams(stderr, stdout string) string {
	stderr = strings.TrimRight(stderr, "\r\n")
	stdout = strings.TrimRight(stdout, "\r\n")
	switch {
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		return stderr + "\n" + stdout
	}
}
