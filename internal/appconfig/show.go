package appconfig

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the current configuration summary. With raw set the
// whole struct is dumped instead.
func ShowConfig(out io.Writer, cfg Config, raw bool) {
	if cfg.ConfigPath == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", cfg.ConfigPath)
	}

	if raw {
		pp.Fprintln(out, cfg)
		return
	}

	run := cfg.RunConfig()
	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  JMeter Binary:     %s\n", cfg.JMeterBin())
	fmt.Fprintf(out, "  Stop Script:       %s\n", cfg.StopScriptPath())
	fmt.Fprintf(out, "  Results Dir:       %s\n", cfg.ResultsDirectory())
	fmt.Fprintf(out, "  Test Plan (JMX):   %s\n", orNone(cfg.JMXPath))
	fmt.Fprintf(out, "  Log File:          %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Poll Interval:     %s\n", cfg.PollInterval())
	if grace := cfg.StopGracePeriod(); grace > 0 {
		fmt.Fprintf(out, "  Stop Grace Period: %s\n", grace)
	} else {
		fmt.Fprintln(out, "  Stop Grace Period: none (stop script only)")
	}
	fmt.Fprintf(out, "  Metrics Address:   %s\n", orNone(cfg.MetricsAddr))
	fmt.Fprintln(out, "Run defaults:")
	fmt.Fprintf(out, "  Virtual Users:     %d\n", run.VirtualUsers)
	fmt.Fprintf(out, "  Ramp-up:           %ds\n", run.RampUpSeconds)
	fmt.Fprintf(out, "  Duration:          %ds\n", run.DurationSeconds)
	fmt.Fprintf(out, "  Iterations:        %d\n", run.Iterations)
	fmt.Fprintf(out, "  RAG Mode:          %v\n", run.UseRAG)
	fmt.Fprintf(out, "  Prompt Count:      %d\n", run.PromptCount)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
