package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/michaelbrown/skillforge/internal/sandbox"
)

const doubler = `#include <stdio.h>
int main(){int n;scanf("%d",&n);printf("%d",n*2);return 0;}`

func newGCCChecker(t *testing.T, root string) *Checker {
	t.Helper()
	requireGCC(t)
	p := sandbox.DefaultPolicy()
	p.RunTimeout = time.Second
	return New(Options{WorkspaceRoot: root, Policy: p})
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace root not empty: %d entries left", len(entries))
	}
}

func TestCheckCodeEmptySource(t *testing.T) {
	sb := &fakeSandbox{}
	c := New(Options{Sandbox: sb, WorkspaceRoot: t.TempDir(), Policy: sandbox.DefaultPolicy()})

	for _, src := range []string{"", "  \n\t"} {
		v := c.CheckCode(context.Background(), src, `{"tests":[{"input":"1","output":"1"}]}`)
		if v.Status != StatusError || v.Message != MsgEmptySource {
			t.Errorf("CheckCode(%q) = %s %q, want ERROR %q", src, v.Status, v.Message, MsgEmptySource)
		}
	}
	if n := sb.callCount(); n != 0 {
		t.Errorf("compiler invoked %d times for empty source", n)
	}
}

func TestCheckCodeToolchainMissing(t *testing.T) {
	root := t.TempDir()
	sb := &fakeSandbox{exec: func(sandbox.ExecOpts) (*sandbox.ExecResult, error) {
		return nil, errors.New("executable file not found in $PATH")
	}}
	c := New(Options{CompilerPath: "cc-missing", Sandbox: sb, WorkspaceRoot: root, Policy: sandbox.DefaultPolicy()})

	v := c.CheckCode(context.Background(), doubler, `{"tests":[{"input":"5","output":"10"}]}`)
	if v.Status != StatusError {
		t.Fatalf("status = %s, want ERROR", v.Status)
	}
	if !strings.Contains(v.Message, "cc-missing") || !strings.Contains(v.Message, "apt-get install gcc") {
		t.Errorf("message %q lacks remediation text", v.Message)
	}
	if n := sb.callCount(); n != 1 {
		t.Errorf("got %d exec calls, want only the version check", n)
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeRecoversPanic(t *testing.T) {
	root := t.TempDir()
	sb := &fakeSandbox{exec: func(opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
		if opts.Dir != "" {
			panic("sandbox exploded")
		}
		return &sandbox.ExecResult{}, nil
	}}
	c := New(Options{Sandbox: sb, WorkspaceRoot: root, Policy: sandbox.DefaultPolicy()})

	v := c.CheckCode(context.Background(), doubler, `{"tests":[{"input":"5","output":"10"}]}`)
	if v.Status != StatusError || !strings.Contains(v.Message, "sandbox exploded") {
		t.Errorf("verdict = %s %q, want system error", v.Status, v.Message)
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeProgress(t *testing.T) {
	// Compiles "successfully" and runs a shell script in place of the binary.
	sb := &fakeSandbox{}
	sb.exec = func(opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
		if len(opts.Command) > 1 && opts.Command[1] == "-o" {
			path := opts.Dir + "/" + BinaryName
			return &sandbox.ExecResult{}, os.WriteFile(path, []byte("#!/bin/sh\ncat\n"), 0o755)
		}
		if len(opts.Command) == 1 {
			return sandbox.NewLocalSandbox(sandbox.DefaultPolicy()).Exec(context.Background(), opts)
		}
		return &sandbox.ExecResult{}, nil
	}
	c := New(Options{Sandbox: sb, WorkspaceRoot: t.TempDir(), Policy: sandbox.DefaultPolicy()})

	var compiled bool
	var numbers []int
	v := c.Check(context.Background(), Request{
		Source:    doubler,
		TestsJSON: `{"tests":[{"input":"a","output":"a"},{"input":"b","output":"c"}]}`,
	}, &Progress{
		Compiled: func(o CompilationOutcome) { compiled = o.Success },
		TestDone: func(n, total int, _ TestExecutionResult) {
			if total != 2 {
				t.Errorf("total = %d, want 2", total)
			}
			numbers = append(numbers, n)
		},
	})

	if !compiled {
		t.Error("Compiled callback not invoked")
	}
	if fmt.Sprint(numbers) != "[1 2]" {
		t.Errorf("test numbers = %v, want [1 2]", numbers)
	}
	if v.Status != StatusFailed || v.TestsPassed != 1 || v.TestsTotal != 2 {
		t.Errorf("verdict = %s %d/%d, want FAILED 1/2", v.Status, v.TestsPassed, v.TestsTotal)
	}
	if !v.TestResults[0].Passed || v.TestResults[1].Passed {
		t.Errorf("results out of order: %+v", v.TestResults)
	}
}

func TestCheckCodePasses(t *testing.T) {
	root := t.TempDir()
	c := newGCCChecker(t, root)

	v := c.CheckCode(context.Background(), doubler, `{"tests":[{"input":"5","output":"10"}]}`)
	if v.Status != StatusPassed {
		t.Fatalf("status = %s (%s), want PASSED", v.Status, v.Message)
	}
	if v.TestsPassed != 1 || v.TestsTotal != 1 {
		t.Errorf("passed/total = %d/%d, want 1/1", v.TestsPassed, v.TestsTotal)
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeSyntaxError(t *testing.T) {
	root := t.TempDir()
	c := newGCCChecker(t, root)

	v := c.CheckCode(context.Background(), "int main(){return 0}", `{"tests":[{"input":"","output":""}]}`)
	if v.CompilationSuccess {
		t.Fatal("expected compilation failure")
	}
	if v.CompilationError == "" {
		t.Error("expected compiler diagnostics")
	}
	if len(v.TestResults) != 0 {
		t.Errorf("got %d test results, want 0", len(v.TestResults))
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeNoTests(t *testing.T) {
	root := t.TempDir()
	c := newGCCChecker(t, root)

	for _, spec := range []string{`{"tests":[]}`, `not json`, ``} {
		v := c.CheckCode(context.Background(), doubler, spec)
		if v.Status != StatusError || v.Message != MsgNoTestCases {
			t.Errorf("spec %q: verdict = %s %q, want ERROR %q", spec, v.Status, v.Message, MsgNoTestCases)
		}
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeInfiniteLoop(t *testing.T) {
	root := t.TempDir()
	c := newGCCChecker(t, root)

	start := time.Now()
	v := c.CheckCode(context.Background(), "int main(){for(;;){}}", `{"tests":[{"input":"","output":"1"}]}`)
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Errorf("check took %v", elapsed)
	}
	if len(v.TestResults) != 1 {
		t.Fatalf("got %d results, want 1", len(v.TestResults))
	}
	r := v.TestResults[0]
	if r.Passed || !strings.Contains(r.ErrorMessage, "timed out") {
		t.Errorf("result = %+v, want timeout failure", r)
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeOrderAndIdempotence(t *testing.T) {
	root := t.TempDir()
	c := newGCCChecker(t, root)

	spec := `{"tests":[{"input":"1","output":"2"},{"input":"2","output":"5"},{"input":"3","output":"6"}]}`
	first := c.CheckCode(context.Background(), doubler, spec)
	second := c.CheckCode(context.Background(), doubler, spec)

	if first.TestsTotal != 3 {
		t.Fatalf("total = %d, want 3", first.TestsTotal)
	}
	for i, r := range first.TestResults {
		if r.Input != fmt.Sprint(i+1) {
			t.Errorf("result %d has input %q; order not preserved", i, r.Input)
		}
		if r.Passed != second.TestResults[i].Passed {
			t.Errorf("result %d differs between runs", i)
		}
	}
	if first.TestsPassed != 2 || second.TestsPassed != 2 {
		t.Errorf("passed = %d, %d; want 2, 2", first.TestsPassed, second.TestsPassed)
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeConcurrent(t *testing.T) {
	root := t.TempDir()
	c := newGCCChecker(t, root)

	var wg sync.WaitGroup
	verdicts := make([]Verdict, 4)
	for i := range verdicts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			spec := fmt.Sprintf(`{"tests":[{"input":"%d","output":"%d"}]}`, i, i*2)
			verdicts[i] = c.CheckCode(context.Background(), doubler, spec)
		}(i)
	}
	wg.Wait()

	for i, v := range verdicts {
		if v.Status != StatusPassed {
			t.Errorf("check %d: status = %s (%s)", i, v.Status, v.Message)
		}
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeCancelledDuringRun(t *testing.T) {
	sb := &fakeSandbox{}
	sb.exec = func(opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
		if len(opts.Command) > 1 && opts.Command[1] == "-o" {
			path := opts.Dir + "/" + BinaryName
			return &sandbox.ExecResult{}, os.WriteFile(path, []byte("#!/bin/sh\ncat\n"), 0o755)
		}
		return &sandbox.ExecResult{Stdout: "wrong"}, nil
	}
	root := t.TempDir()
	c := New(Options{Sandbox: sb, WorkspaceRoot: root, Policy: sandbox.DefaultPolicy()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ran int
	v := c.Check(ctx, Request{
		Source:    doubler,
		TestsJSON: `{"tests":[{"input":"5","output":"10"},{"input":"0","output":"0"}]}`,
	}, &Progress{
		Compiled: func(CompilationOutcome) { cancel() },
		TestDone: func(int, int, TestExecutionResult) { ran++ },
	})

	if v.Status != StatusError || v.Message != MsgInterrupted || !v.Interrupted {
		t.Errorf("verdict = %s %q interrupted=%v, want interrupted ERROR", v.Status, v.Message, v.Interrupted)
	}
	if ran != 0 {
		t.Errorf("%d tests ran after cancellation, want 0", ran)
	}
	assertEmptyDir(t, root)
}

func TestCheckCodeAlreadyCancelled(t *testing.T) {
	sb := &fakeSandbox{}
	c := New(Options{Sandbox: sb, WorkspaceRoot: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := c.CheckCode(ctx, doubler, `{"tests":[{"input":"5","output":"10"}]}`)
	if !v.Interrupted || v.Message != MsgInterrupted {
		t.Errorf("verdict = %s %q, want %q", v.Status, v.Message, MsgInterrupted)
	}
	if n := sb.callCount(); n != 0 {
		t.Errorf("sandbox called %d times for a cancelled check", n)
	}
}

func TestCheckCodeZeroOptions(t *testing.T) {
	requireGCC(t)
	c := New(Options{WorkspaceRoot: t.TempDir()})

	v := c.CheckCode(context.Background(), doubler, `{"tests":[{"input":"5","output":"10"}]}`)
	if v.Status != StatusPassed {
		t.Fatalf("verdict = %s %q, want PASSED", v.Status, v.Message)
	}
}

func TestNewFillsPolicyDefaults(t *testing.T) {
	c := New(Options{Sandbox: &fakeSandbox{}})

	d := sandbox.DefaultPolicy()
	if c.compiler.timeout != d.CompileTimeout {
		t.Errorf("compile timeout = %s, want %s", c.compiler.timeout, d.CompileTimeout)
	}
	if c.runner.timeout != d.RunTimeout {
		t.Errorf("run timeout = %s, want %s", c.runner.timeout, d.RunTimeout)
	}
}
