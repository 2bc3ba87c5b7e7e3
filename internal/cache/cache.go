// Package cache stores verdicts keyed by submission content, so identical
// resubmissions skip compilation and execution.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/sandbox"
)

// Cache is a verdict store. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (*checker.Verdict, bool)
	Set(ctx context.Context, key string, v checker.Verdict) error
}

// Key identifies a check by its inputs, the toolchain that built it and
// the limits it ran under.
func Key(req checker.Request, compiler string, policy sandbox.Policy) string {
	h := sha256.New()
	for _, field := range []string{req.Source, req.TestsJSON, compiler, policy.Image, policy.MaxMemory} {
		fmt.Fprintf(h, "%d\x00%s\x00", len(field), field)
	}
	fmt.Fprintf(h, "%d\x00%d\x00%d\x00%d\x00%d",
		req.MaxOutputChars, policy.RunTimeout, policy.CompileTimeout, policy.MaxOutputLines, policy.MaxOutputChars)
	return "verdict:" + hex.EncodeToString(h.Sum(nil))
}

// Cacheable reports whether v is deterministic enough to reuse. ERROR
// verdicts may stem from a transient toolchain problem, interrupted checks
// reflect the caller and timeouts depend on machine load.
func Cacheable(v checker.Verdict) bool {
	if v.Interrupted {
		return false
	}
	if v.Status != checker.StatusPassed && v.Status != checker.StatusFailed {
		return false
	}
	return !v.HasTimeout()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*checker.Verdict, bool) { return nil, false }

func (Nop) Set(context.Context, string, checker.Verdict) error { return nil }

// Memory is an unbounded in-process cache, meant for tests and single-node use.
type Memory struct {
	mu    sync.RWMutex
	items map[string]checker.Verdict
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]checker.Verdict)}
}

func (m *Memory) Get(_ context.Context, key string) (*checker.Verdict, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false
	}
	return &v, true
}

func (m *Memory) Set(_ context.Context, key string, v checker.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = v
	return nil
}

// Len returns the number of cached verdicts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
