// internal/runner/runner.go
// Package runner launches load tests on a background worker and reports
// their progress through a mailbox.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/logging"
	"github.com/mwiater/loadpilot/internal/mailbox"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/mwiater/loadpilot/internal/results"
	"github.com/mwiater/loadpilot/internal/telemetry"
)

// ErrPrecondition is returned by Start when a run cannot be launched.
var ErrPrecondition = errors.New("run precondition failed")

var now = time.Now

// Options configures a Runner.
type Options struct {
	JMeterBin       string
	StopScript      string
	ResultsDir      string
	StopGracePeriod time.Duration
	Telemetry       *telemetry.Collector
	Executor        Executor
	Signaler        Signaler
}

// Runner owns the worker of the current run.
type Runner struct {
	opts     Options
	executor Executor
	signaler Signaler

	mu      sync.Mutex
	current *Run
	lastRun time.Time
}

// New returns a runner. Executor and Signaler default to the child process
// implementations.
func New(opts Options) *Runner {
	r := &Runner{opts: opts, executor: opts.Executor, signaler: opts.Signaler}
	if r.executor == nil {
		r.executor = ProcessExecutor{}
	}
	if r.signaler == nil {
		r.signaler = ScriptSignaler{Script: opts.StopScript}
	}
	if r.opts.ResultsDir == "" {
		r.opts.ResultsDir = "results"
	}
	return r
}

// ResultsDir returns where run artifacts are written.
func (r *Runner) ResultsDir() string { return r.opts.ResultsDir }

// Current returns the handle of the latest run, or nil.
func (r *Runner) Current() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Start validates cfg and launches one worker for run generation gen. On a
// precondition failure the error is logged, FAILED is posted to mb and no
// worker is started.
func (r *Runner) Start(ctx context.Context, cfg results.RunConfig, mb *mailbox.Mailbox, gen uint64) (*Run, error) {
	mb.Advance(gen)
	if err := r.checkPreconditions(cfg); err != nil {
		mb.AppendLog(mailbox.AgentError, "❌ %v", err)
		mb.SetStatus(mailbox.Update{Generation: gen, State: lifecycle.Failed, Detail: err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	r.mu.Lock()
	runID := r.nextRunID()
	inv := BuildInvocation(r.opts.JMeterBin, r.opts.ResultsDir, runID, cfg)
	run := newRun(ctx, runID, gen)
	r.current = run
	r.mu.Unlock()
	mb.ResetStop()

	mb.AppendLog(mailbox.AgentRunner, "Using JMX file at: %s", cfg.DefinitionPath)
	go r.work(run, cfg, inv, mb)
	return run, nil
}

// nextRunID returns a run id later than any id this runner issued whose
// artifacts do not exist yet. Callers hold r.mu.
func (r *Runner) nextRunID() string {
	t := now().Truncate(time.Millisecond)
	if !r.lastRun.IsZero() && !t.After(r.lastRun) {
		t = r.lastRun.Add(time.Millisecond)
	}
	for r.artifactsExist(results.NewRunID(t)) {
		t = t.Add(time.Millisecond)
	}
	r.lastRun = t
	return results.NewRunID(t)
}

func (r *Runner) artifactsExist(runID string) bool {
	inv := BuildInvocation(r.opts.JMeterBin, r.opts.ResultsDir, runID, results.RunConfig{})
	for _, path := range []string{inv.SampleLogPath, results.ManifestPath(r.opts.ResultsDir, runID)} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

func (r *Runner) checkPreconditions(cfg results.RunConfig) error {
	if err := cfg.Validate(); err != nil {
		if cfg.DefinitionPath == "" {
			return errors.New("no valid JMX file found; please select a test plan first")
		}
		return err
	}
	info, err := os.Stat(cfg.DefinitionPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no valid JMX file found at %s; please select a test plan first", cfg.DefinitionPath)
		}
		return fmt.Errorf("test plan %s not accessible: %w", cfg.DefinitionPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("test plan %s is a directory", cfg.DefinitionPath)
	}
	return nil
}

// RequestStop raises the stop flag of the current run, posts STOPPED for it
// and fires the stop script. A failing script is only logged. With a stop
// grace period configured the process is killed once it elapses.
func (r *Runner) RequestStop(mb *mailbox.Mailbox) {
	mb.RequestStop()
	run := r.Current()
	var gen uint64
	if run != nil {
		run.stop.Store(true)
		gen = run.gen
	}
	mb.SetStatus(mailbox.Update{Generation: gen, State: lifecycle.Stopped, Detail: "stop requested"})
	mb.AppendLog(mailbox.AgentRunner, "🛑 Stop requested; signalling the load test to shut down.")
	r.opts.Telemetry.StopRequested()

	if err := r.signaler.Signal(); err != nil {
		mb.AppendLog(mailbox.AgentError, "❌ Failed to send stop signal: %v", err)
	} else {
		logging.LogCommand("stop", r.opts.StopScript, nil, nil)
	}

	if run != nil && r.opts.StopGracePeriod > 0 {
		mb.AppendLog(mailbox.AgentRunner, "The process will be killed if it is still running after %s.", r.opts.StopGracePeriod)
		run.killAfter(r.opts.StopGracePeriod)
	}
}

func (r *Runner) work(run *Run, cfg results.RunConfig, inv Invocation, mb *mailbox.Mailbox) {
	started := now()
	outcome := Outcome{State: lifecycle.Failed}
	r.opts.Telemetry.RunStarted()
	defer func() {
		if p := recover(); p != nil {
			outcome = Outcome{State: lifecycle.Failed, Err: fmt.Errorf("worker panic: %v", p)}
			mb.AppendLog(mailbox.AgentError, "❌ Load test worker crashed: %v", p)
			mb.SetStatus(mailbox.Update{Generation: run.gen, State: lifecycle.Failed, Detail: outcome.Err.Error()})
		}
		r.opts.Telemetry.RunFinished(outcome.State.String(), now().Sub(started))
		run.finish(outcome)
	}()

	fail := func(err error) {
		outcome = Outcome{State: lifecycle.Failed, Err: err}
		mb.AppendLog(mailbox.AgentError, "❌ %v", err)
		mb.SetStatus(mailbox.Update{Generation: run.gen, State: lifecycle.Failed, Detail: err.Error()})
	}

	mb.SetStatus(mailbox.Update{Generation: run.gen, State: lifecycle.Running})
	if err := os.MkdirAll(r.opts.ResultsDir, 0o755); err != nil {
		fail(fmt.Errorf("create results directory %s: %w", r.opts.ResultsDir, err))
		return
	}

	mb.AppendLog(mailbox.AgentRunner, "🏃 Running JMeter: %s", inv)
	logging.LogCommand("start", inv.Program, inv.Args, cfg)
	stdout := &lineWriter{emit: func(line string) { mb.AppendLog(mailbox.AgentRunner, "%s", line) }}
	execErr := r.executor.Execute(run.ctx, inv, stdout)
	stdout.Flush()
	res := inv.Result(cfg, started, now())

	if run.StopRequested() {
		outcome = Outcome{State: lifecycle.Stopped, Result: &res}
		mb.AppendLog(mailbox.AgentRunner, "⏹️ Load test stopped by user; skipping analysis.")
		mb.SetStatus(mailbox.Update{Generation: run.gen, State: lifecycle.Stopped, Detail: "stopped by user"})
		return
	}
	if execErr != nil {
		fail(fmt.Errorf("load test failed: %w", execErr))
		return
	}

	mb.SetResult(run.gen, res)
	if _, err := results.SaveManifest(r.opts.ResultsDir, res); err != nil {
		mb.AppendLog(mailbox.AgentRunner, "⚠️ Could not save run manifest: %v", err)
	}

	summary, tokenErr, err := metrics.AnalyzeRun(res)
	if err != nil {
		fail(fmt.Errorf("analysis failed: %w", err))
		outcome.Result = &res
		return
	}
	if tokenErr != nil {
		mb.AppendLog(mailbox.AgentKPI, "⚠️ Token KPIs unavailable: %v", tokenErr)
	} else if summary.Tokens != nil {
		mb.AppendLog(mailbox.AgentKPI, "✅ Token KPIs computed for %d requests.", summary.Tokens.Count)
	}
	r.opts.Telemetry.SamplesAnalyzed(summary.TotalSamples)

	mb.AppendLog(mailbox.AgentRunner, "✅ Load test analysis complete: %s (%d/%d passed)", summary.Status, summary.Passed, summary.TotalSamples)
	mb.SetAnalysis(run.gen, summary)
	mb.SetStatus(mailbox.Update{Generation: run.gen, State: lifecycle.Completed})
	outcome = Outcome{State: lifecycle.Completed, Result: &res, Summary: &summary}
}
