// internal/metrics/tokens.go
package metrics

import (
	"fmt"
	"time"

	"github.com/mwiater/loadpilot/internal/samplelog"
)

// TokenKPI holds the derived per-request token metrics.
type TokenKPI struct {
	Timestamp time.Time `json:"timestamp"`
	TTFTMs    float64   `json:"ttftMs"`
	TPOTMs    float64   `json:"tpotMs"`
	TPS       float64   `json:"tps"`
}

// TokenSummary aggregates token KPIs across a run.
type TokenSummary struct {
	Count       int                `json:"count"`
	TTFT        Distribution       `json:"ttft"`
	TPOT        Distribution       `json:"tpot"`
	TPS         Distribution       `json:"tps"`
	BucketWidth BucketWidth        `json:"bucketWidth"`
	Series      []TokenSeriesPoint `json:"series"`
}

// TokenSeriesPoint is one window of the token KPI chart.
type TokenSeriesPoint struct {
	Time        time.Time `json:"time"`
	TTFTMs      float64   `json:"ttftMs"`
	TPOTMs      float64   `json:"tpotMs"`
	TPS         float64   `json:"tps"`
	Concurrency int       `json:"concurrency"`
}

// TTFT is the time to first token: model load plus prompt evaluation.
func TTFT(loadMs, promptEvalMs float64) float64 {
	return finite(loadMs + promptEvalMs)
}

// TPS is the generated tokens per second over the whole request. It is 0
// when either input is not positive.
func TPS(evalCount int64, totalMs float64) float64 {
	if evalCount <= 0 || totalMs <= 0 {
		return 0
	}
	return finite(float64(evalCount) / (totalMs / 1000))
}

// TPOT is the time per output token after the first one arrived. It is 0
// when no tokens were generated.
func TPOT(totalMs, ttftMs float64, evalCount int64) float64 {
	if evalCount <= 0 {
		return 0
	}
	return finite((totalMs - ttftMs) / float64(evalCount))
}

// ComputeTokenKPIs derives TTFT, TPOT and TPS for every record.
func ComputeTokenKPIs(records []samplelog.TokenMetricRecord) []TokenKPI {
	kpis := make([]TokenKPI, len(records))
	for i, r := range records {
		ttft := TTFT(r.LoadDurationMs, r.PromptEvalDurationMs)
		kpis[i] = TokenKPI{
			Timestamp: r.Timestamp,
			TTFTMs:    ttft,
			TPOTMs:    TPOT(r.TotalDurationMs, ttft, r.EvalCount),
			TPS:       TPS(r.EvalCount, r.TotalDurationMs),
		}
	}
	return kpis
}

// SummarizeTokens aggregates token records and resamples them into the
// same windows the latency overlay would use for their time span. samples
// supply the concurrency gauge and may be empty.
func SummarizeTokens(records []samplelog.TokenMetricRecord, samples []samplelog.Sample) (*TokenSummary, error) {
	if len(records) == 0 {
		return nil, samplelog.ErrTokenMetricsUnavailable
	}
	kpis := ComputeTokenKPIs(records)

	times := make([]time.Time, len(kpis))
	ttft := make([]float64, len(kpis))
	tpot := make([]float64, len(kpis))
	tps := make([]float64, len(kpis))
	for i, k := range kpis {
		times[i] = k.Timestamp
		ttft[i], tpot[i], tps[i] = k.TTFTMs, k.TPOTMs, k.TPS
	}

	summary := &TokenSummary{
		Count: len(kpis),
		TTFT:  distribution(ttft),
		TPOT:  distribution(tpot),
		TPS:   distribution(tps),
	}
	summary.BucketWidth = BucketWidthFor(span(times))
	points, err := resampleTokens(times, ttft, tpot, tps, samples, summary.BucketWidth)
	if err != nil {
		return nil, err
	}
	summary.Series = points
	return summary, nil
}

func resampleTokens(times []time.Time, ttft, tpot, tps []float64, samples []samplelog.Sample, bucket BucketWidth) ([]TokenSeriesPoint, error) {
	width := bucket.Width
	first, last := bucketRange(times, width)
	if err := checkWindows(first, last, bucket); err != nil {
		return nil, fmt.Errorf("token metrics: %w", err)
	}
	ttftSeries := reduceByWindow(times, ttft, width, first, last, mean).forwardFill()
	tpotSeries := reduceByWindow(times, tpot, width, first, last, mean).forwardFill()
	tpsSeries := reduceByWindow(times, tps, width, first, last, mean).forwardFill()

	var gauge series
	if len(samples) > 0 {
		sampleTimes := make([]time.Time, len(samples))
		for i, s := range samples {
			sampleTimes[i] = s.Timestamp
		}
		gFirst, gLast := bucketRange(sampleTimes, width)
		gFirst, gLast = min(gFirst, first), max(gLast, last)
		if err := checkWindows(gFirst, gLast, bucket); err != nil {
			return nil, fmt.Errorf("token metrics against sample log: %w", err)
		}
		gauge = concurrencySeries(samples, width, gFirst, gLast)
	}

	points := make([]TokenSeriesPoint, 0, last-first+1)
	for idx := first; idx <= last; idx++ {
		a, okA := ttftSeries.at(idx)
		b, okB := tpotSeries.at(idx)
		c, okC := tpsSeries.at(idx)
		if !okA || !okB || !okC {
			continue
		}
		conc, _ := gauge.at(idx)
		points = append(points, TokenSeriesPoint{
			Time:        bucketStart(idx, width),
			TTFTMs:      a,
			TPOTMs:      b,
			TPS:         c,
			Concurrency: int(conc),
		})
	}
	return points, nil
}

func span(times []time.Time) time.Duration {
	if len(times) == 0 {
		return 0
	}
	lo, hi := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return hi.Sub(lo)
}
