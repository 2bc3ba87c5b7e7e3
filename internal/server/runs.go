package server

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// activeRun is one streamed check in progress.
type activeRun struct {
	taskID string
	cancel context.CancelFunc
}

// RunTracker tracks streamed checks so they can be cancelled when the
// client goes away or the server shuts down.
type RunTracker struct {
	mu   sync.Mutex
	runs map[string]*activeRun
}

// NewRunTracker creates an empty RunTracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{
		runs: make(map[string]*activeRun),
	}
}

// Start registers a run for taskID and returns its context and id. The
// context is cancelled by Finish, CancelAll, or the parent.
func (rt *RunTracker) Start(parent context.Context, taskID string) (context.Context, string) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New().String()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.runs[id] = &activeRun{taskID: taskID, cancel: cancel}
	return ctx, id
}

// Finish cancels and forgets a run. Unknown ids are ignored.
func (rt *RunTracker) Finish(id string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if run, ok := rt.runs[id]; ok {
		run.cancel()
		delete(rt.runs, id)
	}
}

// Active counts runs for taskID, or all runs when taskID is empty.
func (rt *RunTracker) Active(taskID string) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if taskID == "" {
		return len(rt.runs)
	}
	n := 0
	for _, run := range rt.runs {
		if run.taskID == taskID {
			n++
		}
	}
	return n
}

// CancelAll cancels every run.
func (rt *RunTracker) CancelAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for id, run := range rt.runs {
		run.cancel()
		delete(rt.runs, id)
	}
}
