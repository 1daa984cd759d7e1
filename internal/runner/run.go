// internal/runner/run.go
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/mwiater/loadpilot/internal/results"
)

// Outcome is the final state of a run as seen by its worker.
type Outcome struct {
	State   lifecycle.State
	Result  *results.RunResult
	Summary *metrics.Summary
	Err     error
}

// Run is the handle of one started run. Done closes once the worker has
// written its terminal status.
type Run struct {
	id     string
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	stop   atomic.Bool

	mu       sync.Mutex
	outcome  Outcome
	hardStop *time.Timer
}

func newRun(parent context.Context, id string, gen uint64) *Run {
	ctx, cancel := context.WithCancel(parent)
	return &Run{id: id, gen: gen, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Generation returns the lifecycle generation the run belongs to.
func (r *Run) Generation() uint64 { return r.gen }

// Done is closed when the worker has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Outcome returns the terminal outcome. Before Done is closed it reports
// RUNNING.
func (r *Run) Outcome() Outcome {
	select {
	case <-r.done:
	default:
		return Outcome{State: lifecycle.Running}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.Outcome(), nil
	case <-ctx.Done():
		return Outcome{State: lifecycle.Running}, ctx.Err()
	}
}

// StopRequested reports whether a stop was requested for this run.
func (r *Run) StopRequested() bool { return r.stop.Load() }

// Kill cancels the process context of the run immediately.
func (r *Run) Kill() { r.cancel() }

// killAfter cancels the process context once grace has elapsed unless the
// run finishes first.
func (r *Run) killAfter(grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hardStop != nil {
		return
	}
	r.hardStop = time.AfterFunc(grace, r.cancel)
}

func (r *Run) finish(o Outcome) {
	r.mu.Lock()
	r.outcome = o
	if r.hardStop != nil {
		r.hardStop.Stop()
	}
	r.mu.Unlock()
	r.cancel()
	close(r.done)
}
