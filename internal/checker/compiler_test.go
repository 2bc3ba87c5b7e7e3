package checker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/sandbox"
)

func newTestCompiler(sb sandbox.Sandbox) *Compiler {
	return NewCompiler("", sb, 10*time.Second, zap.NewNop().Sugar())
}

func TestCompileArgs(t *testing.T) {
	sb := &fakeSandbox{}
	c := newTestCompiler(sb)

	out := c.Compile(context.Background(), "/w/solution.c", "/w")
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if len(sb.calls) != 1 {
		t.Fatalf("got %d exec calls, want 1", len(sb.calls))
	}

	call := sb.calls[0]
	got := strings.Join(call.Command, " ")
	want := "gcc -o solution solution.c -std=c11 -Wall -Wextra -O2"
	if got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
	if call.Dir != "/w" {
		t.Errorf("dir = %q, want /w", call.Dir)
	}
	if call.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", call.Timeout)
	}
}

func TestCompileOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		res      *sandbox.ExecResult
		err      error
		wantOK   bool
		wantDiag string
	}{
		{
			name:   "warnings are not fatal",
			res:    &sandbox.ExecResult{Stderr: "warning: unused variable\n"},
			wantOK: true,
		},
		{
			name:     "stderr then stdout",
			res:      &sandbox.ExecResult{ExitCode: 1, Stderr: "error: expected ';'\n", Stdout: "note: x\n"},
			wantDiag: "error: expected ';'\nnote: x",
		},
		{
			name:     "empty diagnostic synthesized",
			res:      &sandbox.ExecResult{ExitCode: 4},
			wantDiag: "compilation failed (exit code 4)",
		},
		{
			name:     "timeout",
			res:      &sandbox.ExecResult{TimedOut: true, ExitCode: -1},
			wantDiag: "compilation timed out (exceeded 10s)",
		},
		{
			name:     "launch failure",
			err:      errors.New("exec: \"gcc\": executable file not found in $PATH"),
			wantDiag: "compilation error: exec: \"gcc\": executable file not found in $PATH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := &fakeSandbox{exec: func(sandbox.ExecOpts) (*sandbox.ExecResult, error) {
				return tt.res, tt.err
			}}
			out := newTestCompiler(sb).Compile(context.Background(), "/w/solution.c", "/w")
			if out.Success != tt.wantOK {
				t.Errorf("success = %v, want %v", out.Success, tt.wantOK)
			}
			if out.Diagnostic != tt.wantDiag {
				t.Errorf("diagnostic = %q, want %q", out.Diagnostic, tt.wantDiag)
			}
		})
	}
}

func TestCompileInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sb := &fakeSandbox{exec: func(sandbox.ExecOpts) (*sandbox.ExecResult, error) {
		return nil, context.Canceled
	}}
	out := newTestCompiler(sb).Compile(ctx, "/w/solution.c", "/w")
	if out.Success || out.Diagnostic != "compilation interrupted" {
		t.Errorf("outcome = %+v, want interrupted failure", out)
	}
}

func TestCompilerAvailable(t *testing.T) {
	tests := []struct {
		name string
		res  *sandbox.ExecResult
		err  error
		want bool
	}{
		{"ok", &sandbox.ExecResult{Stdout: "gcc 13.2"}, nil, true},
		{"missing", nil, errors.New("not found"), false},
		{"non-zero", &sandbox.ExecResult{ExitCode: 1}, nil, false},
		{"hung", &sandbox.ExecResult{TimedOut: true}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := &fakeSandbox{exec: func(opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
				if got := strings.Join(opts.Command, " "); got != "gcc --version" {
					t.Errorf("version command = %q", got)
				}
				return tt.res, tt.err
			}}
			if got := newTestCompiler(sb).Available(context.Background()); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileRealGCC(t *testing.T) {
	requireGCC(t)

	dir := t.TempDir()
	c := NewCompiler("gcc", sandbox.NewLocalSandbox(sandbox.DefaultPolicy()), 10*time.Second, zap.NewNop().Sugar())

	src := dir + "/" + SourceName
	writeFile(t, src, "int main(void){return 0}\n")
	out := c.Compile(context.Background(), src, dir)
	if out.Success {
		t.Fatal("expected syntax error")
	}
	if !strings.Contains(out.Diagnostic, "error") {
		t.Errorf("diagnostic %q does not mention an error", out.Diagnostic)
	}
}
