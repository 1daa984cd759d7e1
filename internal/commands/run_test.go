package loadpilot

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/loadpilot/internal/appconfig"
	"github.com/mwiater/loadpilot/internal/results"
	"github.com/mwiater/loadpilot/internal/runner"
	"github.com/mwiater/loadpilot/internal/session"
	"github.com/mwiater/loadpilot/internal/telemetry"
	"github.com/spf13/cobra"
)

const commandJTL = `timeStamp,elapsed,label,responseCode,success,threadName,grpThreads,allThreads
1718000000000,120,Chat,200,true,Users 1-1,1,1
1718000001000,180,Chat,200,true,Users 1-2,2,2
1718000002000,900,RAG,500,false,Users 1-2,2,2
`

const commandResponses = `{"prompt":"2+2?","llm_response":"4","correct_answer":"4"}
{"prompt":"Capital?","llm_response":"Lyon","correct_answer":"Paris"}
`

type fixtureExecutor struct {
	jtl string
}

func (f fixtureExecutor) Execute(ctx context.Context, inv runner.Invocation, stdout io.Writer) error {
	_, _ = io.WriteString(stdout, "summary =      3 in 00:00:03\n")
	return os.WriteFile(inv.SampleLogPath, []byte(f.jtl), 0o644)
}

type noopSignaler struct{}

func (noopSignaler) Signal() error { return nil }

func useFixtureRunner(t *testing.T, jtl string) {
	t.Helper()
	orig := runnerOptions
	runnerOptions = func(cfg *appconfig.Config, collector *telemetry.Collector) runner.Options {
		opts := orig(cfg, collector)
		opts.Executor = fixtureExecutor{jtl: jtl}
		opts.Signaler = noopSignaler{}
		return opts
	}
	t.Cleanup(func() { runnerOptions = orig })
}

func TestRunCommandLineMode(t *testing.T) {
	useFixtureRunner(t, commandJTL)
	jmx := writeTempFile(t, "plan.jmx", "<jmeterTestPlan/>")
	dir := t.TempDir()
	analysisPath := filepath.Join(dir, "out", "analysis.json")
	htmlPath := filepath.Join(dir, "out", "report.html")

	out, err := executeCommand(t, "run",
		"--jmxPath", jmx,
		"--resultsDir", filepath.Join(dir, "results"),
		"--pollIntervalSeconds", "1",
		"--users", "3", "--duration", "5",
		"--analysis-output", analysisPath,
		"--html-output", htmlPath,
	)
	if err != nil {
		t.Fatalf("run error: %v\n%s", err, out)
	}
	for _, want := range []string{
		"JMeterAgent: 🏃 Running JMeter:",
		"-Jthreads=3",
		"summary =      3 in 00:00:03",
		"Load test analysis complete: fail (2/3 passed)",
		"Load Test Summary",
		"Per-label Results",
		"Analysis JSON written to",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(analysisPath)
	if err != nil {
		t.Fatalf("analysis JSON not written: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid analysis JSON: %v", err)
	}
	if decoded["totalSamples"] != float64(3) {
		t.Fatalf("unexpected totalSamples %v", decoded["totalSamples"])
	}
	if _, err := os.Stat(htmlPath); err != nil {
		t.Fatalf("HTML report not written: %v", err)
	}
}

func TestRunCommandMissingPlan(t *testing.T) {
	useFixtureRunner(t, commandJTL)
	out, err := executeCommand(t, "run", "--jmxPath", filepath.Join(t.TempDir(), "missing.jmx"), "--resultsDir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "load test failed") {
		t.Fatalf("expected failure, got %v", err)
	}
	if !strings.Contains(out, "no valid JMX file found") {
		t.Fatalf("expected precondition message in output:\n%s", out)
	}
}

func TestRunCommandEmptySampleLog(t *testing.T) {
	useFixtureRunner(t, "timeStamp,elapsed,label,responseCode,success,threadName,grpThreads,allThreads\n")
	jmx := writeTempFile(t, "plan.jmx", "<jmeterTestPlan/>")
	_, err := executeCommand(t, "run", "--jmxPath", jmx, "--resultsDir", t.TempDir(), "--pollIntervalSeconds", "1")
	if err == nil || !strings.Contains(err.Error(), "analysis failed") {
		t.Fatalf("expected analysis failure, got %v", err)
	}
}

func TestRunCommandTUIMode(t *testing.T) {
	useFixtureRunner(t, commandJTL)
	orig := runTUI
	var gotInterval time.Duration
	runTUI = func(ctx context.Context, sess *session.Session, cfg results.RunConfig, interval time.Duration) error {
		gotInterval = interval
		_, err := sess.Start(ctx, cfg)
		return err
	}
	t.Cleanup(func() { runTUI = orig })

	jmx := writeTempFile(t, "plan.jmx", "<jmeterTestPlan/>")
	out, err := executeCommand(t, "run", "--tui", "--jmxPath", jmx, "--resultsDir", t.TempDir(), "--pollIntervalSeconds", "3")
	if err != nil {
		t.Fatalf("run --tui error: %v\n%s", err, out)
	}
	if gotInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval, got %s", gotInterval)
	}
	if !strings.Contains(out, "Load Test Summary") {
		t.Fatalf("expected summary after the TUI exits:\n%s", out)
	}
}

func TestApplyRunFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	opts := runOpts
	t.Cleanup(func() { runOpts = opts })
	cmd.Flags().IntVarP(&runOpts.users, "users", "u", 0, "")
	cmd.Flags().IntVar(&runOpts.rampUp, "ramp-up", 0, "")
	cmd.Flags().IntVarP(&runOpts.duration, "duration", "d", 0, "")
	cmd.Flags().IntVar(&runOpts.iterations, "iterations", 0, "")
	cmd.Flags().IntVar(&runOpts.prompts, "prompts", 0, "")
	cmd.Flags().BoolVar(&runOpts.rag, "rag", false, "")
	if err := cmd.Flags().Parse([]string{"-u", "8", "--ramp-up", "0", "--rag"}); err != nil {
		t.Fatal(err)
	}

	cfg := results.RunConfig{VirtualUsers: 1, RampUpSeconds: 60, DurationSeconds: 300, Iterations: 1, PromptCount: 1}
	applyRunFlags(cmd, &cfg)
	want := results.RunConfig{VirtualUsers: 8, RampUpSeconds: 0, DurationSeconds: 300, Iterations: 1, UseRAG: true, PromptCount: 1}
	if cfg != want {
		t.Fatalf("applyRunFlags = %+v, want %+v", cfg, want)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	samples := writeTempFile(t, "run.jtl", commandJTL)
	htmlPath := filepath.Join(t.TempDir(), "report.html")
	out, err := executeCommand(t, "analyze", "--samples", samples, "--html-output", htmlPath)
	if err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	for _, want := range []string{"Token KPIs unavailable", "Report written to", "Status:         fail (2/3 passed)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if _, err := os.Stat(htmlPath); err != nil {
		t.Fatalf("report missing: %v", err)
	}
}

func TestAnalyzeCommandRequiresInput(t *testing.T) {
	if _, err := executeCommand(t, "analyze"); err != errMissingInput {
		t.Fatalf("expected errMissingInput, got %v", err)
	}
}

func TestQualityCommand(t *testing.T) {
	responses := writeTempFile(t, "responses.json", commandResponses)
	out, err := executeCommand(t, "quality", "--responses", responses)
	if err != nil {
		t.Fatalf("quality error: %v", err)
	}
	if !strings.Contains(out, "Passed:        1/2 (50.00%)") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = executeCommand(t, "quality", "--responses", responses, "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"exactMatches": 1`) {
		t.Fatalf("expected JSON output, got:\n%s", out)
	}

	if _, err := executeCommand(t, "quality", "--responses", responses, "--metric", "faithfulness"); err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported metric error, got %v", err)
	}
}

func TestQualityCommandFromManifest(t *testing.T) {
	dir := t.TempDir()
	responses := writeTempFile(t, "responses.json", commandResponses)
	manifest, err := results.SaveManifest(dir, results.RunResult{ID: "20250101_120000", ResponsesPath: responses})
	if err != nil {
		t.Fatal(err)
	}
	out, err := executeCommand(t, "quality", "--manifest", manifest)
	if err != nil {
		t.Fatalf("quality error: %v", err)
	}
	if !strings.Contains(out, "Quality: correctness") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
