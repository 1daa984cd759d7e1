// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mwiater/loadpilot/internal/results"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.yaml"
	// jsonConfigPath is searched after the YAML defaults.
	jsonConfigPath = "config/config.json"
	// defaultPollInterval is how often the foreground drains the mailbox.
	defaultPollInterval = 2 * time.Second
	// defaultJMeterBin is resolved through PATH when no binary is configured.
	defaultJMeterBin = "jmeter"
	// defaultResultsDir holds run artifacts when the config omits it.
	defaultResultsDir = "results"
)

// Config represents the top-level application configuration.
type Config struct {
	JMeterBinPath          string      `json:"jmeterBinPath" yaml:"jmeterBinPath"`
	JMeterStopScript       string      `json:"jmeterStopScript,omitempty" yaml:"jmeterStopScript,omitempty"`
	ResultsDir             string      `json:"resultsDir" yaml:"resultsDir"`
	JMXPath                string      `json:"jmxPath,omitempty" yaml:"jmxPath,omitempty"`
	LogFile                string      `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	PollIntervalSeconds    int         `json:"pollIntervalSeconds,omitempty" yaml:"pollIntervalSeconds,omitempty"`
	StopGracePeriodSeconds int         `json:"stopGracePeriodSeconds,omitempty" yaml:"stopGracePeriodSeconds,omitempty"`
	MetricsAddr            string      `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`
	Defaults               RunDefaults `json:"defaults" yaml:"defaults"`
	ConfigPath             string      `json:"-" yaml:"-"`
}

// RunDefaults seeds the run settings when flags do not override them.
type RunDefaults struct {
	VirtualUsers    int  `json:"virtualUsers,omitempty" yaml:"virtualUsers,omitempty"`
	RampUpSeconds   *int `json:"rampUpSeconds,omitempty" yaml:"rampUpSeconds,omitempty"`
	DurationSeconds int  `json:"durationSeconds,omitempty" yaml:"durationSeconds,omitempty"`
	Iterations      int  `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	UseRAG          bool `json:"useRag,omitempty" yaml:"useRag,omitempty"`
	PromptCount     *int `json:"promptCount,omitempty" yaml:"promptCount,omitempty"`
}

// JMeterBin returns the load generator binary, falling back to PATH lookup.
func (c Config) JMeterBin() string {
	if b := strings.TrimSpace(c.JMeterBinPath); b != "" {
		return b
	}
	return defaultJMeterBin
}

// StopScriptPath returns the script that asks a running test to shut down.
// Without an explicit setting it sits next to the JMeter binary, named for
// the current OS.
func (c Config) StopScriptPath() string {
	if s := strings.TrimSpace(c.JMeterStopScript); s != "" {
		return s
	}
	return filepath.Join(filepath.Dir(c.JMeterBin()), stopScriptName(runtime.GOOS))
}

func stopScriptName(goos string) string {
	if goos == "windows" {
		return "stoptest.cmd"
	}
	return "stoptest.sh"
}

// ResultsDirectory returns where run artifacts are written.
func (c Config) ResultsDirectory() string {
	if d := strings.TrimSpace(c.ResultsDir); d != "" {
		return d
	}
	return defaultResultsDir
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "loadpilot.log"
}

// PollInterval returns the foreground polling cadence.
func (c Config) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return defaultPollInterval
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StopGracePeriod returns how long a stopped run may keep its process
// before it is killed. Zero leaves the process to the stop script.
func (c Config) StopGracePeriod() time.Duration {
	if c.StopGracePeriodSeconds <= 0 {
		return 0
	}
	return time.Duration(c.StopGracePeriodSeconds) * time.Second
}

// RunConfig builds the run settings from the configured defaults.
func (c Config) RunConfig() results.RunConfig {
	d := c.Defaults
	cfg := results.RunConfig{
		VirtualUsers:    1,
		RampUpSeconds:   60,
		DurationSeconds: 300,
		Iterations:      1,
		UseRAG:          d.UseRAG,
		PromptCount:     1,
		DefinitionPath:  c.JMXPath,
	}
	if d.VirtualUsers > 0 {
		cfg.VirtualUsers = d.VirtualUsers
	}
	if d.RampUpSeconds != nil {
		cfg.RampUpSeconds = *d.RampUpSeconds
	}
	if d.DurationSeconds > 0 {
		cfg.DurationSeconds = d.DurationSeconds
	}
	if d.Iterations > 0 {
		cfg.Iterations = d.Iterations
	}
	if d.PromptCount != nil {
		cfg.PromptCount = *d.PromptCount
	}
	return cfg
}

// SearchPaths lists the files Load tries when no path is given, most
// specific first.
func SearchPaths(goos string) []string {
	var paths []string
	switch goos {
	case "darwin":
		paths = append(paths, "config/config.mac.yaml")
	case "windows":
		paths = append(paths, "config/config.windows.yaml")
	}
	return append(paths, DefaultConfigPath, jsonConfigPath)
}

// Load reads the application configuration from the specified path. With an
// empty path the platform search list is tried in order.
func Load(path string) (Config, error) {
	if path != "" {
		config, err := loadFromPath(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found at %q", path)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
		}
		config.ConfigPath = path
		return config, nil
	}

	candidates := SearchPaths(runtime.GOOS)
	for _, candidate := range candidates {
		config, err := loadFromPath(candidate)
		if err == nil {
			config.ConfigPath = candidate
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("could not read config file %q: %w", candidate, err)
		}
	}
	return Config{}, fmt.Errorf("no configuration file found (searched %s): %w", strings.Join(candidates, ", "), os.ErrNotExist)
}

// loadFromPath decodes path as JSON or YAML depending on its extension.
func loadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &config)
	default:
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return Config{}, err
	}
	if config.StopGracePeriodSeconds < 0 {
		return Config{}, errors.New("stopGracePeriodSeconds must not be negative")
	}
	return config, nil
}
