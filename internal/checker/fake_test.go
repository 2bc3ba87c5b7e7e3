package checker

import (
	"context"
	"os/exec"
	"sync"
	"testing"

	"github.com/michaelbrown/skillforge/internal/sandbox"
)

// fakeSandbox returns canned results and records every call.
type fakeSandbox struct {
	mu    sync.Mutex
	calls []sandbox.ExecOpts
	exec  func(opts sandbox.ExecOpts) (*sandbox.ExecResult, error)
}

func (f *fakeSandbox) Exec(ctx context.Context, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if f.exec == nil {
		return &sandbox.ExecResult{}, nil
	}
	return f.exec(opts)
}

func (f *fakeSandbox) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func requireGCC(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not found on PATH")
	}
}
