// internal/commands/root.go
package loadpilot

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mwiater/loadpilot/internal/appconfig"
	"github.com/mwiater/loadpilot/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// fileLoggingAnnotation marks commands that render the session log
// themselves and keep the process log out of the console.
const fileLoggingAnnotation = "fileLogging"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "loadpilot",
	Short:        "loadpilot: JMeter load test orchestration for LLM endpoints",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		applyOverrides(&cfg)
		if cfg.StopGracePeriodSeconds < 0 {
			return fmt.Errorf("invalid configuration: stopGracePeriodSeconds must not be negative")
		}
		currentConfig = &cfg

		initLogging := logging.Init
		if cmd.Annotations[fileLoggingAnnotation] == "true" {
			initLogging = logging.InitFileOnly
		}
		if err := initLogging(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stringKeys and intKeys are the config keys that flags and LOADPILOT_*
// environment variables may override.
var (
	stringKeys = map[string]func(*appconfig.Config, string){
		"jmeterBinPath":    func(c *appconfig.Config, v string) { c.JMeterBinPath = v },
		"jmeterStopScript": func(c *appconfig.Config, v string) { c.JMeterStopScript = v },
		"resultsDir":       func(c *appconfig.Config, v string) { c.ResultsDir = v },
		"jmxPath":          func(c *appconfig.Config, v string) { c.JMXPath = v },
		"logFile":          func(c *appconfig.Config, v string) { c.LogFile = v },
		"metricsAddr":      func(c *appconfig.Config, v string) { c.MetricsAddr = v },
	}
	intKeys = map[string]func(*appconfig.Config, int){
		"pollIntervalSeconds":    func(c *appconfig.Config, v int) { c.PollIntervalSeconds = v },
		"stopGracePeriodSeconds": func(c *appconfig.Config, v int) { c.StopGracePeriodSeconds = v },
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: platform file, then config/config.yaml, then config/config.json)")

	rootCmd.PersistentFlags().String("jmeterBinPath", "", "path to the JMeter binary")
	rootCmd.PersistentFlags().String("jmeterStopScript", "", "path to the JMeter stop script (defaults beside the binary)")
	rootCmd.PersistentFlags().String("resultsDir", "", "directory for run artifacts")
	rootCmd.PersistentFlags().String("jmxPath", "", "JMeter test plan to run")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("metricsAddr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().Int("pollIntervalSeconds", 0, "seconds between progress polls (0 = default)")
	rootCmd.PersistentFlags().Int("stopGracePeriodSeconds", 0, "kill JMeter this many seconds after a stop request (0 = never)")

	for key := range stringKeys {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
	for key := range intKeys {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
	viper.SetEnvPrefix("LOADPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file. Without an explicit path a missing file
// is not an error and defaults apply.
func loadConfig(path string) (appconfig.Config, error) {
	cfg, err := appconfig.Load(path)
	if err != nil {
		if path == "" && errors.Is(err, os.ErrNotExist) {
			return appconfig.Config{}, nil
		}
		return appconfig.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies flag and environment values over the file config
// (flags > env > config > defaults).
func applyOverrides(cfg *appconfig.Config) {
	for key, set := range stringKeys {
		if viper.IsSet(key) {
			set(cfg, viper.GetString(key))
		}
	}
	for key, set := range intKeys {
		if viper.IsSet(key) {
			set(cfg, viper.GetInt(key))
		}
	}
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	if currentConfig == nil {
		return &appconfig.Config{}
	}
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
