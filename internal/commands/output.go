// internal/commands/output.go
package loadpilot

import (
	"errors"
	"fmt"
	"io"

	"github.com/mwiater/loadpilot/internal/mailbox"
	"github.com/mwiater/loadpilot/internal/metrics"
)

var errMissingInput = errors.New("either --manifest or --samples is required")

// printEntries writes session log lines, coloring errors and warnings.
func printEntries(out io.Writer, entries []mailbox.Entry) {
	for _, e := range entries {
		switch e.Agent {
		case mailbox.AgentError:
			failColor.Fprintln(out, e.String())
		case mailbox.AgentSession:
			warnColor.Fprintln(out, e.String())
		default:
			fmt.Fprintln(out, e.String())
		}
	}
}

// printSummary renders the run summary as plain text.
func printSummary(out io.Writer, s *metrics.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintln(out)
	headingColor.Fprintln(out, "Load Test Summary")
	verdict := passColor
	if s.Status != metrics.StatusSuccess {
		verdict = failColor
	}
	verdict.Fprintf(out, "  Status:         %s (%d/%d passed)\n", s.Status, s.Passed, s.TotalSamples)
	fmt.Fprintf(out, "  Pass / Fail:    %.2f%% / %.2f%%\n", s.PassPct, s.FailPct)
	fmt.Fprintf(out, "  Duration:       %s\n", metrics.FormatDuration(s.Duration))
	fmt.Fprintf(out, "  Response (ms):  avg %.2f  p90 %.2f  min %.0f  max %.0f\n", s.AvgResponseMs, s.P90ResponseMs, s.MinResponseMs, s.MaxResponseMs)
	fmt.Fprintf(out, "  Overlay:        %d points at %s\n", len(s.Overlay), s.BucketWidth)

	if len(s.Labels) > 0 {
		fmt.Fprintln(out)
		headingColor.Fprintln(out, "Per-label Results")
		fmt.Fprintf(out, "  %-24s %8s %7s %8s %10s %10s\n", "Label", "Samples", "Errors", "Error %", "Avg ms", "P90 ms")
		for _, l := range s.Labels {
			fmt.Fprintf(out, "  %-24s %8d %7d %8.2f %10.2f %10.2f\n", l.Label, l.Samples, l.Errors, l.ErrorRatePct, l.AvgMs, l.P90Ms)
		}
	}

	if t := s.Tokens; t != nil {
		fmt.Fprintln(out)
		headingColor.Fprintln(out, "Token KPIs")
		fmt.Fprintf(out, "  Requests:       %d\n", t.Count)
		fmt.Fprintf(out, "  TTFT (ms):      avg %.2f  p90 %.2f  min %.2f  max %.2f\n", t.TTFT.Avg, t.TTFT.P90, t.TTFT.Min, t.TTFT.Max)
		fmt.Fprintf(out, "  TPOT (ms):      avg %.2f  p90 %.2f  min %.2f  max %.2f\n", t.TPOT.Avg, t.TPOT.P90, t.TPOT.Min, t.TPOT.Max)
		fmt.Fprintf(out, "  TPS:            avg %.2f  p90 %.2f  min %.2f  max %.2f\n", t.TPS.Avg, t.TPS.P90, t.TPS.Min, t.TPS.Max)
	}
}
