// internal/mailbox/mailbox.go
// Package mailbox is the hand-off point between a run's worker goroutine
// and the foreground that polls it. The worker writes; the foreground
// drains each field and the drain clears it.
package mailbox

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/logging"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/mwiater/loadpilot/internal/results"
)

// MaxLogEntries bounds the retained log history.
const MaxLogEntries = 1000

// Agent names used in log entries.
const (
	AgentRunner  = "JMeterAgent"
	AgentError   = "AgentError"
	AgentKPI     = "LLMKPIAgent"
	AgentSession = "SessionAgent"
)

// Entry is one log line.
type Entry struct {
	Time    time.Time
	Agent   string
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Time.Format("15:04:05"), e.Agent, e.Message)
}

// Update is a status change reported by the worker of one run generation.
type Update struct {
	Generation uint64
	State      lifecycle.State
	Detail     string
}

type pendingResult struct {
	gen    uint64
	result results.RunResult
}

type pendingAnalysis struct {
	gen     uint64
	summary metrics.Summary
}

// Mailbox holds the pending worker output for one session. Status, result
// and analysis writes from a generation older than the current one are
// dropped.
type Mailbox struct {
	mu         sync.Mutex
	generation uint64
	logs       []Entry
	status     *Update
	result     *pendingResult
	analysis   *pendingAnalysis
	stop       atomic.Bool
	now        func() time.Time
}

// New returns an empty mailbox.
func New() *Mailbox {
	return &Mailbox{now: time.Now}
}

// AppendLog adds a formatted entry for agent and mirrors it to the process
// log. The oldest entries are dropped beyond MaxLogEntries.
func (m *Mailbox) AppendLog(agent, format string, args ...any) {
	entry := Entry{Time: m.now(), Agent: agent, Message: fmt.Sprintf(format, args...)}
	m.mu.Lock()
	m.logs = append(m.logs, entry)
	if over := len(m.logs) - MaxLogEntries; over > 0 {
		m.logs = append(m.logs[:0:0], m.logs[over:]...)
	}
	m.mu.Unlock()
	logging.LogEvent("%s", entry.String())
}

// Warn logs a warning under the session agent. It satisfies
// lifecycle.Warner.
func (m *Mailbox) Warn(format string, args ...any) {
	m.AppendLog(AgentSession, "⚠️ "+format, args...)
}

// DrainLogs returns the pending entries in append order and clears them.
func (m *Mailbox) DrainLogs() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := m.logs
	m.logs = nil
	return logs
}

// Advance makes gen the current run generation and discards pending output
// of older generations. A lower gen is ignored.
func (m *Mailbox) Advance(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen <= m.generation {
		return
	}
	m.generation = gen
	if m.status != nil && m.status.Generation < gen {
		m.status = nil
	}
	if m.result != nil && m.result.gen < gen {
		m.result = nil
	}
	if m.analysis != nil && m.analysis.gen < gen {
		m.analysis = nil
	}
}

// Generation returns the current run generation.
func (m *Mailbox) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// SetStatus replaces any pending status update. It reports false when u
// belongs to an older generation and was dropped.
func (m *Mailbox) SetStatus(u Update) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Generation < m.generation {
		return false
	}
	m.status = &u
	return true
}

// TakeStatus returns and clears the pending status update.
func (m *Mailbox) TakeStatus() (Update, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return Update{}, false
	}
	u := *m.status
	m.status = nil
	return u, true
}

// SetResult stores the artifacts of run gen unless gen is stale.
func (m *Mailbox) SetResult(gen uint64, r results.RunResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen < m.generation {
		return false
	}
	m.result = &pendingResult{gen: gen, result: r}
	return true
}

// TakeResult returns and clears the pending run result.
func (m *Mailbox) TakeResult() (results.RunResult, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return results.RunResult{}, 0, false
	}
	p := m.result
	m.result = nil
	return p.result, p.gen, true
}

// SetAnalysis stores the summary of run gen unless gen is stale.
func (m *Mailbox) SetAnalysis(gen uint64, s metrics.Summary) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen < m.generation {
		return false
	}
	m.analysis = &pendingAnalysis{gen: gen, summary: s}
	return true
}

// TakeAnalysis returns and clears the pending summary.
func (m *Mailbox) TakeAnalysis() (metrics.Summary, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analysis == nil {
		return metrics.Summary{}, 0, false
	}
	p := m.analysis
	m.analysis = nil
	return p.summary, p.gen, true
}

// RequestStop raises the stop flag.
func (m *Mailbox) RequestStop() { m.stop.Store(true) }

// ResetStop lowers the stop flag.
func (m *Mailbox) ResetStop() { m.stop.Store(false) }

// StopRequested reports whether a stop was requested.
func (m *Mailbox) StopRequested() bool { return m.stop.Load() }
