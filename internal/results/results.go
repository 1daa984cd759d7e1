// internal/results/results.go
// Package results defines the records that describe one load test execution
// and persists them as YAML manifests next to the run's artifacts.
package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RunIDLayout formats the timestamp that identifies a run.
const RunIDLayout = "20060102_150405"

// ErrInvalidConfig is returned by RunConfig.Validate.
var ErrInvalidConfig = errors.New("invalid run configuration")

// RunConfig captures the knobs forwarded to the load generator.
type RunConfig struct {
	VirtualUsers    int    `json:"virtualUsers" yaml:"virtualUsers"`
	RampUpSeconds   int    `json:"rampUpSeconds" yaml:"rampUpSeconds"`
	DurationSeconds int    `json:"durationSeconds" yaml:"durationSeconds"`
	Iterations      int    `json:"iterations" yaml:"iterations"`
	UseRAG          bool   `json:"useRag" yaml:"useRag"`
	PromptCount     int    `json:"promptCount" yaml:"promptCount"`
	DefinitionPath  string `json:"definitionPath" yaml:"definitionPath"`
}

// Validate checks the numeric bounds. Whether DefinitionPath exists is
// checked by the runner right before launch.
func (c RunConfig) Validate() error {
	switch {
	case c.VirtualUsers < 1:
		return fmt.Errorf("%w: virtual users must be at least 1 (got %d)", ErrInvalidConfig, c.VirtualUsers)
	case c.RampUpSeconds < 0:
		return fmt.Errorf("%w: ramp-up must not be negative (got %d)", ErrInvalidConfig, c.RampUpSeconds)
	case c.DurationSeconds <= 0:
		return fmt.Errorf("%w: duration must be positive (got %d)", ErrInvalidConfig, c.DurationSeconds)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be at least 1 (got %d)", ErrInvalidConfig, c.Iterations)
	case c.PromptCount < 0:
		return fmt.Errorf("%w: prompt count must not be negative (got %d)", ErrInvalidConfig, c.PromptCount)
	case c.DefinitionPath == "":
		return fmt.Errorf("%w: no test definition selected", ErrInvalidConfig)
	}
	return nil
}

// RunResult describes a finished run and where its artifacts live.
type RunResult struct {
	ID               string    `json:"id" yaml:"id"`
	SampleLogPath    string    `json:"sampleLogPath" yaml:"sampleLogPath"`
	ProcessLogPath   string    `json:"processLogPath" yaml:"processLogPath"`
	TokenKPIPath     string    `json:"tokenKpiPath" yaml:"tokenKpiPath"`
	TokenMetricsPath string    `json:"tokenMetricsPath" yaml:"tokenMetricsPath"`
	ResponsesPath    string    `json:"responsesPath" yaml:"responsesPath"`
	Config           RunConfig `json:"config" yaml:"config"`
	StartedAt        time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt" yaml:"finishedAt"`
}

// NewRunID returns the identifier for a run started at t: the RunIDLayout
// timestamp followed by the millisecond, as in 20250304_050607_042.
func NewRunID(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format(RunIDLayout), t.Nanosecond()/int(time.Millisecond))
}

// ManifestPath returns where the manifest for runID is stored in dir.
func ManifestPath(dir, runID string) string {
	return filepath.Join(dir, runID+".manifest.yaml")
}

// SaveManifest writes r as YAML into dir and returns the file path.
func SaveManifest(dir string, r RunResult) (string, error) {
	if r.ID == "" {
		return "", errors.New("run result has no id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory %s: %w", dir, err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	path := ManifestPath(dir, r.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", path, err)
	}
	return path, nil
}

// LoadManifest reads a manifest previously written by SaveManifest.
func LoadManifest(path string) (RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunResult{}, err
	}
	var r RunResult
	if err := yaml.Unmarshal(data, &r); err != nil {
		return RunResult{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if r.ID == "" {
		return RunResult{}, fmt.Errorf("manifest %s has no run id", path)
	}
	return r, nil
}
