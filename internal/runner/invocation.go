// internal/runner/invocation.go
package runner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mwiater/loadpilot/internal/results"
)

// Invocation is one fully resolved load generator command line together
// with the artifacts it will produce.
type Invocation struct {
	Program          string
	Args             []string
	RunID            string
	SampleLogPath    string
	ProcessLogPath   string
	TokenKPIPath     string
	TokenMetricsPath string
	ResponsesPath    string
}

// BuildInvocation assembles the non-GUI JMeter command for cfg. All
// artifacts are placed in resultsDir and named after runID.
func BuildInvocation(bin, resultsDir, runID string, cfg results.RunConfig) Invocation {
	inv := Invocation{
		Program:          bin,
		RunID:            runID,
		SampleLogPath:    filepath.Join(resultsDir, fmt.Sprintf("jmeter_test_%s.jtl", runID)),
		ProcessLogPath:   filepath.Join(resultsDir, fmt.Sprintf("jmeter_test_%s.log", runID)),
		TokenKPIPath:     filepath.Join(resultsDir, runID+"_llm_kpis.csv"),
		TokenMetricsPath: filepath.Join(resultsDir, runID+"_llm_metrics.csv"),
		ResponsesPath:    filepath.Join(resultsDir, runID+"_llm_responses.json"),
	}
	inv.Args = []string{
		"-n",
		"-t", cfg.DefinitionPath,
		"-l", inv.SampleLogPath,
		"-j", inv.ProcessLogPath,
		property("duration", strconv.Itoa(cfg.DurationSeconds)),
		property("threads", strconv.Itoa(cfg.VirtualUsers)),
		property("rampup", strconv.Itoa(cfg.RampUpSeconds)),
		property("loops", strconv.Itoa(cfg.Iterations)),
		property("use_rag", strconv.FormatBool(cfg.UseRAG)),
		property("prompt_count", strconv.Itoa(cfg.PromptCount)),
		property("run_id", runID),
		property("llm_kpi_csv", inv.TokenKPIPath),
		property("llm_metrics_csv", inv.TokenMetricsPath),
		property("llm_responses_json", inv.ResponsesPath),
	}
	return inv
}

func property(name, value string) string {
	return "-J" + name + "=" + value
}

func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Program}, inv.Args...), " ")
}

// Result describes the finished invocation.
func (inv Invocation) Result(cfg results.RunConfig, started, finished time.Time) results.RunResult {
	return results.RunResult{
		ID:               inv.RunID,
		SampleLogPath:    inv.SampleLogPath,
		ProcessLogPath:   inv.ProcessLogPath,
		TokenKPIPath:     inv.TokenKPIPath,
		TokenMetricsPath: inv.TokenMetricsPath,
		ResponsesPath:    inv.ResponsesPath,
		Config:           cfg,
		StartedAt:        started,
		FinishedAt:       finished,
	}
}
