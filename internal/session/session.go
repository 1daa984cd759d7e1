// internal/session/session.go
// Package session holds the state of one operator session: its run
// lifecycle, the mailbox its worker writes to and the history the front end
// renders.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/mailbox"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/mwiater/loadpilot/internal/results"
	"github.com/mwiater/loadpilot/internal/runner"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("a test is already running")

// Snapshot is what a front end renders after a poll.
type Snapshot struct {
	ID        string
	Lifecycle lifecycle.Snapshot
	Controls  lifecycle.Controls
	NewLogs   []mailbox.Entry
	Summary   *metrics.Summary
}

// Session ties a lifecycle, a mailbox and a runner together.
type Session struct {
	id        string
	lifecycle *lifecycle.Lifecycle
	mailbox   *mailbox.Mailbox
	runner    *runner.Runner

	mu      sync.Mutex
	run     *runner.Run
	logs    []mailbox.Entry
	summary *metrics.Summary
}

// New returns an idle session using r for its runs.
func New(r *runner.Runner) *Session {
	mb := mailbox.New()
	return &Session{
		id:        uuid.NewString(),
		lifecycle: lifecycle.New(mb.Warn),
		mailbox:   mb,
		runner:    r,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Lifecycle returns the run state machine.
func (s *Session) Lifecycle() *lifecycle.Lifecycle { return s.lifecycle }

// Mailbox returns the worker hand-off point.
func (s *Session) Mailbox() *mailbox.Mailbox { return s.mailbox }

// Start launches a run with cfg. Only one run is active at a time; a
// rejected precondition leaves the session FAILED.
func (s *Session) Start(ctx context.Context, cfg results.RunConfig) (*runner.Run, error) {
	gen, ok := s.lifecycle.Start()
	if !ok {
		return nil, ErrAlreadyRunning
	}
	s.mu.Lock()
	s.summary = nil
	s.mu.Unlock()

	run, err := s.runner.Start(ctx, cfg, s.mailbox, gen)
	if err != nil {
		s.lifecycle.Fail(gen, err)
		return nil, err
	}
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
	return run, nil
}

// Stop requests the active run to stop. When nothing is running a single
// warning is logged and false is returned.
func (s *Session) Stop() bool {
	if !s.lifecycle.Stop() {
		return false
	}
	s.runner.RequestStop(s.mailbox)
	return true
}

// Poll drains the mailbox without blocking and applies the pending status
// to the lifecycle. Output of an earlier run generation is discarded.
func (s *Session) Poll() Snapshot {
	gen := s.lifecycle.Generation()
	entries := s.mailbox.DrainLogs()

	if res, resGen, ok := s.mailbox.TakeResult(); ok && resGen == gen {
		s.lifecycle.AttachResult(gen, &res)
	}
	if summary, sumGen, ok := s.mailbox.TakeAnalysis(); ok && sumGen == gen {
		s.mu.Lock()
		s.summary = &summary
		s.mu.Unlock()
	}
	if u, ok := s.mailbox.TakeStatus(); ok && u.Generation == gen {
		s.apply(u)
	}

	s.mu.Lock()
	s.logs = append(s.logs, entries...)
	if over := len(s.logs) - mailbox.MaxLogEntries; over > 0 {
		s.logs = append(s.logs[:0:0], s.logs[over:]...)
	}
	summary := s.summary
	s.mu.Unlock()

	snap := s.lifecycle.Snapshot()
	return Snapshot{
		ID:        s.id,
		Lifecycle: snap,
		Controls:  lifecycle.ControlsFor(snap.State),
		NewLogs:   entries,
		Summary:   summary,
	}
}

func (s *Session) apply(u mailbox.Update) {
	switch u.State {
	case lifecycle.Running:
		s.lifecycle.MarkRunning(u.Generation)
	case lifecycle.Completed:
		s.lifecycle.Complete(u.Generation, nil)
	case lifecycle.Failed:
		s.lifecycle.Fail(u.Generation, errors.New(u.Detail))
	case lifecycle.Stopped:
		s.lifecycle.Halt(u.Generation)
	}
}

// Done is closed when the latest run's worker has finished. It is closed
// immediately when no run was started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return run.Done()
}

// Wait blocks until the latest run finishes, then polls once more.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.Done():
		return s.Poll(), nil
	case <-ctx.Done():
		return s.Poll(), ctx.Err()
	}
}

// Logs returns the retained log history.
func (s *Session) Logs() []mailbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailbox.Entry(nil), s.logs...)
}

// ClearLogs empties the log history. It is refused while a run is active.
func (s *Session) ClearLogs() bool {
	if s.lifecycle.Controls().ClearLogsDisabled {
		s.mailbox.Warn("Logs cannot be cleared while a test is running.")
		return false
	}
	s.mailbox.DrainLogs()
	s.mu.Lock()
	s.logs = nil
	s.mu.Unlock()
	return true
}

// Summary returns the analysis of the latest completed run.
func (s *Session) Summary() *metrics.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}
