// internal/commands/quality.go
package loadpilot

import (
	"encoding/json"
	"fmt"

	"github.com/mwiater/loadpilot/internal/quality"
	"github.com/mwiater/loadpilot/internal/results"
	"github.com/spf13/cobra"
)

type qualityOptions struct {
	manifestPath  string
	responsesPath string
	metric        string
	threshold     float64
	jsonOutput    bool
}

var qualityOpts qualityOptions

// qualityCmd summarizes the graded responses exported by a run.
var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Summarize response quality of a finished load test",
	Long: `Read the LLM responses exported by a run (one JSON object per line) and
summarize them with a quality metric. Correctness counts a response as passed
when its grader score, or its strict exact match against the expected answer,
reaches the threshold.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		metric, err := quality.ParseMetric(qualityOpts.metric)
		if err != nil {
			return err
		}
		path := qualityOpts.responsesPath
		if path == "" && qualityOpts.manifestPath != "" {
			res, err := results.LoadManifest(qualityOpts.manifestPath)
			if err != nil {
				return err
			}
			path = res.ResponsesPath
		}
		if path == "" {
			return fmt.Errorf("either --manifest or --responses is required")
		}

		records, skipped, err := quality.ReadRecords(path)
		if err != nil {
			return fmt.Errorf("read responses %s: %w", path, err)
		}
		out := cmd.OutOrStdout()
		for _, s := range skipped {
			warnColor.Fprintf(out, "Skipping %s\n", s.Error())
		}
		res, err := quality.SummarizeWithThreshold(metric, records, qualityOpts.threshold)
		if err != nil {
			return err
		}

		if qualityOpts.jsonOutput {
			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		headingColor.Fprintf(out, "Quality: %s\n", res.Metric)
		verdict := passColor
		if res.Passed < res.Count {
			verdict = failColor
		}
		verdict.Fprintf(out, "  Passed:        %d/%d (%.2f%%) at threshold %.2f\n", res.Passed, res.Count, res.PassRatePct, res.Threshold)
		fmt.Fprintf(out, "  Exact matches: %d\n", res.ExactMatches)
		fmt.Fprintf(out, "  Graded:        %d\n", res.Graded)
		fmt.Fprintf(out, "  Score:         avg %.3f  p90 %.3f  min %.3f  max %.3f\n", res.Score.Avg, res.Score.P90, res.Score.Min, res.Score.Max)
		return nil
	},
}

func init() {
	qualityCmd.Flags().StringVar(&qualityOpts.manifestPath, "manifest", "", "Path to a run manifest; its responses file is used")
	qualityCmd.Flags().StringVar(&qualityOpts.responsesPath, "responses", "", "Path to an exported responses file (JSON lines)")
	qualityCmd.Flags().StringVar(&qualityOpts.metric, "metric", quality.Correctness.String(), "Quality metric (correctness, answer-relevancy, faithfulness, hallucination)")
	qualityCmd.Flags().Float64Var(&qualityOpts.threshold, "threshold", quality.DefaultThreshold, "Minimum score for a response to pass")
	qualityCmd.Flags().BoolVar(&qualityOpts.jsonOutput, "json", false, "Print the result as JSON")

	rootCmd.AddCommand(qualityCmd)
}
