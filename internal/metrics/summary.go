// internal/metrics/summary.go
// Package metrics turns the artifacts of a load test run into summary
// statistics and chart-ready time series.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mwiater/loadpilot/internal/samplelog"
)

// ErrNoSamples is returned when a sample log holds no rows.
var ErrNoSamples = errors.New("no samples to summarize")

// Status values reported in Summary.Status.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// Summary is the aggregate view of one run's sample log.
type Summary struct {
	TotalSamples  int              `json:"totalSamples"`
	Passed        int              `json:"passed"`
	Failed        int              `json:"failed"`
	PassPct       float64          `json:"passPct"`
	FailPct       float64          `json:"failPct"`
	ErrorRate     float64          `json:"errorRate"`
	Status        string           `json:"status"`
	StartTime     time.Time        `json:"startTime"`
	EndTime       time.Time        `json:"endTime"`
	Duration      time.Duration    `json:"duration"`
	AvgResponseMs float64          `json:"avgResponseMs"`
	P90ResponseMs float64          `json:"p90ResponseMs"`
	MinResponseMs float64          `json:"minResponseMs"`
	MaxResponseMs float64          `json:"maxResponseMs"`
	Labels        []LabelAggregate `json:"labels"`
	BucketWidth   BucketWidth      `json:"bucketWidth"`
	Overlay       []OverlayPoint   `json:"overlay"`
	Tokens        *TokenSummary    `json:"tokens,omitempty"`
}

// LabelAggregate is one row of the per-label table.
type LabelAggregate struct {
	Label        string  `json:"label"`
	Samples      int     `json:"samples"`
	Errors       int     `json:"errors"`
	ErrorRatePct float64 `json:"errorRatePct"`
	AvgMs        float64 `json:"avgMs"`
	MinMs        float64 `json:"minMs"`
	MaxMs        float64 `json:"maxMs"`
	P90Ms        float64 `json:"p90Ms"`
}

// Summarize computes totals, response time statistics, per-label rows and
// the latency/concurrency overlay series for samples.
func Summarize(samples []samplelog.Sample) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrNoSamples
	}

	elapsed := make([]float64, len(samples))
	start, end := samples[0].Timestamp, samples[0].Timestamp
	passed := 0
	for i, s := range samples {
		elapsed[i] = float64(s.ElapsedMs)
		if s.Success {
			passed++
		}
		if s.Timestamp.Before(start) {
			start = s.Timestamp
		}
		if s.Timestamp.After(end) {
			end = s.Timestamp
		}
	}

	total := len(samples)
	failed := total - passed
	summary := Summary{
		TotalSamples:  total,
		Passed:        passed,
		Failed:        failed,
		PassPct:       ratioPct(passed, total),
		FailPct:       ratioPct(failed, total),
		Status:        StatusSuccess,
		StartTime:     start,
		EndTime:       end,
		Duration:      end.Sub(start),
		AvgResponseMs: mean(elapsed),
		P90ResponseMs: percentile(elapsed, 90),
		MinResponseMs: minValue(elapsed),
		MaxResponseMs: maxValue(elapsed),
		Labels:        summarizeLabels(samples),
	}
	summary.ErrorRate = summary.FailPct
	if failed > 0 {
		summary.Status = StatusFail
	}
	summary.BucketWidth = BucketWidthFor(summary.Duration)
	width := summary.BucketWidth.Width
	if err := checkWindows(bucketIndex(start, width), bucketIndex(end, width), summary.BucketWidth); err != nil {
		return Summary{}, err
	}
	summary.Overlay = ResampleOverlay(samples, summary.BucketWidth)
	return summary, nil
}

func summarizeLabels(samples []samplelog.Sample) []LabelAggregate {
	type acc struct {
		elapsed []float64
		errors  int
	}
	byLabel := make(map[string]*acc)
	for _, s := range samples {
		a, ok := byLabel[s.Label]
		if !ok {
			a = &acc{}
			byLabel[s.Label] = a
		}
		a.elapsed = append(a.elapsed, float64(s.ElapsedMs))
		if !s.Success {
			a.errors++
		}
	}

	rows := make([]LabelAggregate, 0, len(byLabel))
	for label, a := range byLabel {
		rows = append(rows, LabelAggregate{
			Label:        label,
			Samples:      len(a.elapsed),
			Errors:       a.errors,
			ErrorRatePct: ratioPct(a.errors, len(a.elapsed)),
			AvgMs:        mean(a.elapsed),
			MinMs:        minValue(a.elapsed),
			MaxMs:        maxValue(a.elapsed),
			P90Ms:        percentile(a.elapsed, 90),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	return rows
}

// FormatDuration renders d as "5 minutes, 30 seconds". The minutes part is
// omitted when zero and the seconds part is always present.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int64(d / time.Second)
	minutes, seconds := total/60, total%60

	var parts []string
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	parts = append(parts, plural(seconds, "second"))
	return strings.Join(parts, ", ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
