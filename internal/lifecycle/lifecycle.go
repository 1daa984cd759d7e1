// internal/lifecycle/lifecycle.go
// Package lifecycle tracks the state of the current load test run and
// derives which controls a front end should offer.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/mwiater/loadpilot/internal/results"
)

// State is the phase of a run.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Failed
	Stopped
)

var stateNames = map[State]string{
	NotStarted: "NOT_STARTED",
	Running:    "RUNNING",
	Completed:  "COMPLETED",
	Failed:     "FAILED",
	Stopped:    "STOPPED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", text)
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Stopped
}

// Warner receives rejected transition warnings.
type Warner func(format string, args ...any)

// Snapshot is a consistent copy of the lifecycle.
type Snapshot struct {
	State      State
	Generation uint64
	Result     *results.RunResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controls tells a front end which actions are currently disabled.
type Controls struct {
	StartDisabled     bool
	StopDisabled      bool
	ConfigDisabled    bool
	ClearLogsDisabled bool
}

// Lifecycle is the state machine of one session's runs. Every run gets a
// new generation so updates from a previous worker can be told apart.
type Lifecycle struct {
	mu         sync.Mutex
	warn       Warner
	state      State
	generation uint64
	result     *results.RunResult
	err        error
	startedAt  time.Time
	finishedAt time.Time
	now        func() time.Time
}

// New returns a lifecycle in NOT_STARTED. warn may be nil.
func New(warn Warner) *Lifecycle {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Lifecycle{warn: warn, now: time.Now}
}

// Start claims RUNNING for a new run and returns its generation. When a run
// is already active it warns and returns ok=false.
func (l *Lifecycle) Start() (uint64, bool) {
	l.mu.Lock()
	if l.state == Running {
		gen := l.generation
		l.mu.Unlock()
		l.warn("A test is already running (run %d); ignoring start request.", gen)
		return gen, false
	}
	l.generation++
	l.state = Running
	l.result = nil
	l.err = nil
	l.startedAt = l.now()
	l.finishedAt = time.Time{}
	gen := l.generation
	l.mu.Unlock()
	return gen, true
}

// MarkRunning records that the worker of gen has begun executing.
func (l *Lifecycle) MarkRunning(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.current(gen) {
		return false
	}
	l.startedAt = l.now()
	return true
}

// Complete moves run gen from RUNNING to COMPLETED.
func (l *Lifecycle) Complete(gen uint64, result *results.RunResult) bool {
	return l.finish(gen, Completed, result, nil)
}

// Fail moves run gen from RUNNING to FAILED.
func (l *Lifecycle) Fail(gen uint64, err error) bool {
	return l.finish(gen, Failed, nil, err)
}

// Halt records that the worker of gen observed a stop request. It is the
// silent counterpart of Stop used when applying worker updates.
func (l *Lifecycle) Halt(gen uint64) bool {
	return l.finish(gen, Stopped, nil, nil)
}

// Stop moves the active run to STOPPED. When nothing is running it warns
// once and leaves the state unchanged.
func (l *Lifecycle) Stop() bool {
	l.mu.Lock()
	if l.state != Running {
		state := l.state
		l.mu.Unlock()
		l.warn("No test is running (state %s); ignoring stop request.", state)
		return false
	}
	l.state = Stopped
	l.finishedAt = l.now()
	l.mu.Unlock()
	return true
}

func (l *Lifecycle) finish(gen uint64, to State, result *results.RunResult, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.current(gen) {
		return false
	}
	l.state = to
	if result != nil {
		l.result = result
	}
	l.err = err
	l.finishedAt = l.now()
	return true
}

// current reports whether gen is the active RUNNING run. Caller holds mu.
func (l *Lifecycle) current(gen uint64) bool {
	return gen == l.generation && l.state == Running
}

// AttachResult records the artifacts of run gen after it left RUNNING.
func (l *Lifecycle) AttachResult(gen uint64, result *results.RunResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.generation && result != nil {
		l.result = result
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Generation returns the generation of the latest run.
func (l *Lifecycle) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Snapshot returns a copy of the lifecycle fields.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		State:      l.state,
		Generation: l.generation,
		Result:     l.result,
		Err:        l.err,
		StartedAt:  l.startedAt,
		FinishedAt: l.finishedAt,
	}
}

// Controls derives control availability from the current state.
func (l *Lifecycle) Controls() Controls {
	return ControlsFor(l.State())
}

// ControlsFor derives control availability for state.
func ControlsFor(state State) Controls {
	running := state == Running
	return Controls{
		StartDisabled:     running,
		StopDisabled:      !running,
		ConfigDisabled:    running,
		ClearLogsDisabled: running,
	}
}
