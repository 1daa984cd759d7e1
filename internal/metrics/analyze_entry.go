package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/loadpilot/internal/results"
	"github.com/mwiater/loadpilot/internal/samplelog"
)

// AnalyzeRun summarizes the sample log of res and, when its token metrics
// file is readable, attaches the token KPIs. tokenErr reports why the token
// enrichment was skipped; it never fails the analysis.
func AnalyzeRun(res results.RunResult) (summary Summary, tokenErr error, err error) {
	if res.SampleLogPath == "" {
		return Summary{}, nil, errors.New("run result has no sample log path")
	}
	samples, err := samplelog.ReadSamples(res.SampleLogPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Summary{}, nil, fmt.Errorf("sample log %s not found: %w", res.SampleLogPath, err)
		}
		return Summary{}, nil, fmt.Errorf("read sample log %s: %w", res.SampleLogPath, err)
	}
	summary, err = Summarize(samples)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("sample log %s: %w", res.SampleLogPath, err)
	}

	if res.TokenMetricsPath == "" {
		return summary, fmt.Errorf("%w: no token metrics file configured", samplelog.ErrTokenMetricsUnavailable), nil
	}
	records, err := samplelog.ReadTokenMetrics(res.TokenMetricsPath)
	if err != nil {
		if !errors.Is(err, samplelog.ErrTokenMetricsUnavailable) {
			err = fmt.Errorf("%w: %v", samplelog.ErrTokenMetricsUnavailable, err)
		}
		return summary, err, nil
	}
	tokens, err := SummarizeTokens(records, samples)
	if err != nil {
		return summary, err, nil
	}
	summary.Tokens = tokens
	return summary, nil, nil
}

// AnalyzeOptions captures the inputs of an offline analysis.
type AnalyzeOptions struct {
	ManifestPath     string
	SampleLogPath    string
	TokenMetricsPath string
	AnalysisPath     string
	HTMLPath         string
}

// Analyze recomputes the summary of a finished run from its manifest or
// from explicit artifact paths, then writes the requested outputs.
func Analyze(opts AnalyzeOptions, out io.Writer) (Summary, error) {
	var res results.RunResult
	if opts.ManifestPath != "" {
		loaded, err := results.LoadManifest(opts.ManifestPath)
		if err != nil {
			return Summary{}, err
		}
		res = loaded
	}
	if opts.SampleLogPath != "" {
		res.SampleLogPath = opts.SampleLogPath
	}
	if opts.TokenMetricsPath != "" {
		res.TokenMetricsPath = opts.TokenMetricsPath
	}
	if res.ID == "" {
		res.ID = strings.TrimSuffix(filepath.Base(res.SampleLogPath), filepath.Ext(res.SampleLogPath))
	}

	summary, tokenErr, err := AnalyzeRun(res)
	if err != nil {
		return Summary{}, err
	}
	if tokenErr != nil {
		fmt.Fprintf(out, "Token KPIs unavailable: %v\n", tokenErr)
	}

	if opts.AnalysisPath != "" {
		if err := writeAnalysisJSON(opts.AnalysisPath, summary); err != nil {
			return summary, err
		}
		fmt.Fprintf(out, "Analysis JSON written to %s\n", opts.AnalysisPath)
	}
	if opts.HTMLPath != "" {
		if err := WriteReport(opts.HTMLPath, res.ID, summary); err != nil {
			return summary, err
		}
		fmt.Fprintf(out, "Report written to %s\n", opts.HTMLPath)
	}
	return summary, nil
}

// WriteAnalysisJSON stores summary as indented JSON at path.
func WriteAnalysisJSON(path string, summary Summary) error {
	return writeAnalysisJSON(path, summary)
}

// WriteReport renders the HTML report of run runID to path.
func WriteReport(path, runID string, summary Summary) error {
	html, err := GenerateReport(runID, summary)
	if err != nil {
		return fmt.Errorf("failed generating HTML report: %w", err)
	}
	return writeFile(path, []byte(html))
}

func writeAnalysisJSON(path string, summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal analysis JSON: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	return nil
}
