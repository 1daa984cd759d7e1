package mailbox

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/mwiater/loadpilot/internal/results"
)

func TestEntryFormat(t *testing.T) {
	e := Entry{Time: time.Date(2025, 1, 2, 14, 5, 9, 0, time.Local), Agent: AgentRunner, Message: "started"}
	if got := e.String(); got != "[14:05:09] JMeterAgent: started" {
		t.Fatalf("Entry.String() = %q", got)
	}
}

func TestDrainLogsClears(t *testing.T) {
	m := New()
	m.AppendLog(AgentRunner, "line %d", 1)
	m.AppendLog(AgentError, "line %d", 2)
	logs := m.DrainLogs()
	if len(logs) != 2 || logs[0].Message != "line 1" || logs[1].Agent != AgentError {
		t.Fatalf("unexpected logs: %+v", logs)
	}
	if again := m.DrainLogs(); len(again) != 0 {
		t.Fatalf("drained logs should not be returned twice: %+v", again)
	}
}

func TestLogCap(t *testing.T) {
	m := New()
	for i := 0; i < MaxLogEntries+25; i++ {
		m.AppendLog(AgentRunner, "%d", i)
	}
	logs := m.DrainLogs()
	if len(logs) != MaxLogEntries {
		t.Fatalf("expected %d retained entries, got %d", MaxLogEntries, len(logs))
	}
	if logs[0].Message != "25" || logs[len(logs)-1].Message != fmt.Sprint(MaxLogEntries+24) {
		t.Fatalf("expected the newest entries to be kept, got %s..%s", logs[0].Message, logs[len(logs)-1].Message)
	}
}

func TestConcurrentAppendKeepsPerWriterOrder(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.AppendLog(fmt.Sprintf("w%d", w), "%d", i)
			}
		}(w)
	}
	var drained []Entry
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		drained = append(drained, m.DrainLogs()...)
		select {
		case <-done:
			drained = append(drained, m.DrainLogs()...)
			last := map[string]int{}
			for _, e := range drained {
				var n int
				fmt.Sscan(e.Message, &n)
				if prev, ok := last[e.Agent]; ok && n != prev+1 {
					t.Fatalf("writer %s out of order: %d after %d", e.Agent, n, prev)
				}
				last[e.Agent] = n
			}
			if len(drained) != 400 {
				t.Fatalf("expected 400 entries, got %d", len(drained))
			}
			return
		default:
		}
	}
}

func TestStatusSwapAndNull(t *testing.T) {
	m := New()
	if _, ok := m.TakeStatus(); ok {
		t.Fatalf("empty mailbox should have no status")
	}
	m.SetStatus(Update{Generation: 1, State: lifecycle.Running})
	m.SetStatus(Update{Generation: 1, State: lifecycle.Completed, Detail: "done"})
	u, ok := m.TakeStatus()
	if !ok || u.State != lifecycle.Completed || u.Detail != "done" {
		t.Fatalf("expected latest status, got %+v", u)
	}
	if _, ok := m.TakeStatus(); ok {
		t.Fatalf("status should be cleared after take")
	}
}

func TestResultAndAnalysisDrainOnce(t *testing.T) {
	m := New()
	m.SetResult(3, results.RunResult{ID: "r3"})
	m.SetAnalysis(3, metrics.Summary{TotalSamples: 7})

	r, gen, ok := m.TakeResult()
	if !ok || gen != 3 || r.ID != "r3" {
		t.Fatalf("TakeResult = %+v %d %v", r, gen, ok)
	}
	if _, _, ok := m.TakeResult(); ok {
		t.Fatalf("result should be cleared after take")
	}
	s, gen, ok := m.TakeAnalysis()
	if !ok || gen != 3 || s.TotalSamples != 7 {
		t.Fatalf("TakeAnalysis = %+v %d %v", s, gen, ok)
	}
	if _, _, ok := m.TakeAnalysis(); ok {
		t.Fatalf("analysis should be cleared after take")
	}
}

func TestStaleGenerationWritesDropped(t *testing.T) {
	m := New()
	m.Advance(1)
	m.SetStatus(Update{Generation: 1, State: lifecycle.Stopped})
	m.Advance(2)
	if _, ok := m.TakeStatus(); ok {
		t.Fatalf("advancing should discard the older pending status")
	}

	if !m.SetStatus(Update{Generation: 2, State: lifecycle.Completed}) {
		t.Fatalf("current generation write rejected")
	}
	if !m.SetResult(2, results.RunResult{ID: "run2"}) || !m.SetAnalysis(2, metrics.Summary{TotalSamples: 4}) {
		t.Fatalf("current generation result or analysis rejected")
	}
	if m.SetStatus(Update{Generation: 1, State: lifecycle.Completed}) {
		t.Fatalf("late status from generation 1 accepted")
	}
	if m.SetResult(1, results.RunResult{ID: "run1"}) || m.SetAnalysis(1, metrics.Summary{TotalSamples: 9}) {
		t.Fatalf("late result or analysis from generation 1 accepted")
	}

	u, ok := m.TakeStatus()
	if !ok || u.Generation != 2 || u.State != lifecycle.Completed {
		t.Fatalf("expected generation 2 COMPLETED, got %+v", u)
	}
	if r, gen, ok := m.TakeResult(); !ok || gen != 2 || r.ID != "run2" {
		t.Fatalf("expected run2 result, got %+v %d %v", r, gen, ok)
	}
	if s, gen, ok := m.TakeAnalysis(); !ok || gen != 2 || s.TotalSamples != 4 {
		t.Fatalf("expected run2 analysis, got %+v %d %v", s, gen, ok)
	}

	m.Advance(1)
	if m.Generation() != 2 {
		t.Fatalf("generation must not move backwards, got %d", m.Generation())
	}
}

func TestStopFlag(t *testing.T) {
	m := New()
	if m.StopRequested() {
		t.Fatalf("stop flag should start lowered")
	}
	m.RequestStop()
	if !m.StopRequested() {
		t.Fatalf("stop flag not raised")
	}
	m.ResetStop()
	if m.StopRequested() {
		t.Fatalf("stop flag not lowered")
	}
}

func TestWarnUsesSessionAgent(t *testing.T) {
	m := New()
	m.Warn("nothing to %s", "stop")
	logs := m.DrainLogs()
	if len(logs) != 1 || logs[0].Agent != AgentSession || !strings.Contains(logs[0].Message, "nothing to stop") {
		t.Fatalf("unexpected warning entry: %+v", logs)
	}
}
