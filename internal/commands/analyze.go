// internal/commands/analyze.go
package loadpilot

import (
	"github.com/fatih/color"
	"github.com/mwiater/loadpilot/internal/metrics"
	"github.com/spf13/cobra"
)

var analyzeOpts metrics.AnalyzeOptions

// analyzeCmd recomputes the summary of a finished run.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the artifacts of a finished load test",
	Long: `Recompute the summary of a finished run from its manifest or from explicit
sample log and token metrics files, then optionally write the analysis JSON
and a self-contained HTML report.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeOpts.ManifestPath == "" && analyzeOpts.SampleLogPath == "" {
			return errMissingInput
		}
		out := cmd.OutOrStdout()
		summary, err := metrics.Analyze(analyzeOpts, out)
		if err != nil {
			return err
		}
		printSummary(out, &summary)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOpts.ManifestPath, "manifest", "", "Path to a run manifest (<id>.manifest.yaml)")
	analyzeCmd.Flags().StringVar(&analyzeOpts.SampleLogPath, "samples", "", "Path to a JMeter sample log (.jtl); overrides the manifest")
	analyzeCmd.Flags().StringVar(&analyzeOpts.TokenMetricsPath, "token-metrics", "", "Path to the LLM token metrics CSV; overrides the manifest")
	analyzeCmd.Flags().StringVar(&analyzeOpts.AnalysisPath, "analysis-output", "", "Optional path to write the analysis JSON")
	analyzeCmd.Flags().StringVar(&analyzeOpts.HTMLPath, "html-output", "", "Optional path to write the HTML report")

	rootCmd.AddCommand(analyzeCmd)
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	passColor    = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
)
