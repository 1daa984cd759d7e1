// internal/commands/run.go
package loadpilot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwiater/loadpilot/internal/appconfig"
	"github.com/mwiater/loadpilot/internal/lifecycle"
	"github.com/mwiater/loadpilot/internal/logging"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/mwiater/loadpilot/internal/results"
	"github.com/mwiater/loadpilot/internal/runner"
	"github.com/mwiater/loadpilot/internal/session"
	"github.com/mwiater/loadpilot/internal/telemetry"
	"github.com/mwiater/loadpilot/internal/tui"
	"github.com/spf13/cobra"
)

type runOptions struct {
	users        int
	rampUp       int
	duration     int
	iterations   int
	prompts      int
	rag          bool
	tui          bool
	analysisPath string
	htmlPath     string
}

var runOpts runOptions

// shutdownTimeout bounds how long the command waits for a killed worker.
const shutdownTimeout = 10 * time.Second

var (
	// runnerOptions builds the runner settings; tests replace it to inject a
	// fake executor.
	runnerOptions = func(cfg *appconfig.Config, collector *telemetry.Collector) runner.Options {
		return runner.Options{
			JMeterBin:       cfg.JMeterBin(),
			StopScript:      cfg.StopScriptPath(),
			ResultsDir:      cfg.ResultsDirectory(),
			StopGracePeriod: cfg.StopGracePeriod(),
			Telemetry:       collector,
		}
	}
	runTUI = tui.Run
)

// runCmd launches one load test and follows it to completion.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a JMeter load test and analyze the results",
	Long: `Launch JMeter in non-GUI mode with the configured test plan, stream its
progress, and summarize the sample log (plus token KPIs when the plan exports
them) once the run completes. Press Ctrl+C once to stop the test gracefully and
twice to kill it.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{fileLoggingAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cfg := GetConfig()
		runCfg := cfg.RunConfig()
		applyRunFlags(cmd, &runCfg)

		collector := telemetry.NewCollector()
		if cfg.MetricsAddr != "" {
			go func() {
				if err := collector.Serve(ctx, cfg.MetricsAddr); err != nil {
					logging.LogEvent("metrics server on %s stopped: %v", cfg.MetricsAddr, err)
				}
			}()
		}

		sess := session.New(runner.New(runnerOptions(cfg, collector)))
		logging.LogEvent("session %s started", sess.ID())
		stopSignals := stopOnInterrupt(ctx, sess, cancel)
		defer stopSignals()

		out := cmd.OutOrStdout()
		var (
			snap session.Snapshot
			err  error
		)
		if runOpts.tui {
			if err := runTUI(ctx, sess, runCfg, cfg.PollInterval()); err != nil {
				return err
			}
			snap, err = awaitShutdown(ctx, out, sess)
		} else {
			snap, err = followRun(ctx, out, sess, runCfg, cfg.PollInterval())
		}
		if err != nil {
			return err
		}
		return finishRun(out, snap, runOpts.analysisPath, runOpts.htmlPath)
	},
}

func init() {
	runCmd.Flags().IntVarP(&runOpts.users, "users", "u", 0, "number of virtual users (threads)")
	runCmd.Flags().IntVar(&runOpts.rampUp, "ramp-up", 0, "ramp-up period in seconds")
	runCmd.Flags().IntVarP(&runOpts.duration, "duration", "d", 0, "test duration in seconds")
	runCmd.Flags().IntVar(&runOpts.iterations, "iterations", 0, "loop count per virtual user")
	runCmd.Flags().IntVar(&runOpts.prompts, "prompts", 0, "number of prompts to send")
	runCmd.Flags().BoolVar(&runOpts.rag, "rag", false, "enable RAG mode in the test plan")
	runCmd.Flags().BoolVar(&runOpts.tui, "tui", false, "follow the run in a full-screen terminal UI")
	runCmd.Flags().StringVar(&runOpts.analysisPath, "analysis-output", "", "Optional path to write the analysis JSON")
	runCmd.Flags().StringVar(&runOpts.htmlPath, "html-output", "", "Optional path to write the HTML report")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides the configured run defaults with flags the user set.
func applyRunFlags(cmd *cobra.Command, cfg *results.RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("users") {
		cfg.VirtualUsers = runOpts.users
	}
	if flags.Changed("ramp-up") {
		cfg.RampUpSeconds = runOpts.rampUp
	}
	if flags.Changed("duration") {
		cfg.DurationSeconds = runOpts.duration
	}
	if flags.Changed("iterations") {
		cfg.Iterations = runOpts.iterations
	}
	if flags.Changed("prompts") {
		cfg.PromptCount = runOpts.prompts
	}
	if flags.Changed("rag") {
		cfg.UseRAG = runOpts.rag
	}
}

// stopOnInterrupt stops the session on the first interrupt and cancels kill
// on the second. The returned func unregisters the handler.
func stopOnInterrupt(ctx context.Context, sess *session.Session, kill context.CancelFunc) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		interrupts := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				interrupts++
				if interrupts == 1 {
					sess.Stop()
					continue
				}
				kill()
				return
			}
		}
	}()
	return func() { signal.Stop(sigs) }
}

// followRun starts a run and prints its log on every poll until the worker
// finishes.
func followRun(ctx context.Context, out io.Writer, sess *session.Session, cfg results.RunConfig, interval time.Duration) (session.Snapshot, error) {
	if _, err := sess.Start(ctx, cfg); err != nil {
		snap := sess.Poll()
		printEntries(out, snap.NewLogs)
		if errors.Is(err, runner.ErrPrecondition) {
			return snap, nil
		}
		return snap, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Done():
			snap := sess.Poll()
			printEntries(out, snap.NewLogs)
			return snap, nil
		case <-ticker.C:
			printEntries(out, sess.Poll().NewLogs)
		case <-ctx.Done():
			return awaitShutdown(context.Background(), out, sess)
		}
	}
}

// awaitShutdown waits for the worker after the foreground has let go of it.
func awaitShutdown(ctx context.Context, out io.Writer, sess *session.Session) (session.Snapshot, error) {
	select {
	case <-sess.Done():
	default:
		warnColor.Fprintln(out, "Waiting for JMeter to shut down (Ctrl+C again to kill it)...")
	}
	waitCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	snap, err := sess.Wait(waitCtx)
	printEntries(out, snap.NewLogs)
	if err != nil {
		return snap, fmt.Errorf("load test did not shut down: %w", err)
	}
	return snap, nil
}

// finishRun prints the outcome and writes the requested artifacts.
func finishRun(out io.Writer, snap session.Snapshot, analysisPath, htmlPath string) error {
	switch snap.Lifecycle.State {
	case lifecycle.Completed:
		printSummary(out, snap.Summary)
		if snap.Summary == nil {
			return nil
		}
		runID := ""
		if snap.Lifecycle.Result != nil {
			runID = snap.Lifecycle.Result.ID
			fmt.Fprintf(out, "\nArtifacts: %s\n", snap.Lifecycle.Result.SampleLogPath)
		}
		if analysisPath != "" {
			if err := metrics.WriteAnalysisJSON(analysisPath, *snap.Summary); err != nil {
				return err
			}
			fmt.Fprintf(out, "Analysis JSON written to %s\n", analysisPath)
		}
		if htmlPath != "" {
			if err := metrics.WriteReport(htmlPath, runID, *snap.Summary); err != nil {
				return err
			}
			fmt.Fprintf(out, "Report written to %s\n", htmlPath)
		}
		return nil
	case lifecycle.Stopped:
		warnColor.Fprintln(out, "Load test stopped; no analysis was produced.")
		return nil
	case lifecycle.Failed:
		if snap.Lifecycle.Err != nil {
			return fmt.Errorf("load test failed: %w", snap.Lifecycle.Err)
		}
		return errors.New("load test failed")
	default:
		return fmt.Errorf("load test ended in unexpected state %s", snap.Lifecycle.State)
	}
}
