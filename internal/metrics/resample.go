// internal/metrics/resample.go
package metrics

import (
	"time"

	"github.com/mwiater/loadpilot/internal/samplelog"
)

// OverlayPoint pairs the latency and concurrency of one time window.
type OverlayPoint struct {
	Time          time.Time `json:"time"`
	P90ResponseMs float64   `json:"p90ResponseMs"`
	Concurrency   int       `json:"concurrency"`
}

// series is a window-indexed column. ok[i] reports whether values[i] is set.
type series struct {
	first  int64
	values []float64
	ok     []bool
}

// reduceByWindow groups points into windows from first to last (inclusive)
// and reduces each non-empty group with fn.
func reduceByWindow(times []time.Time, values []float64, width time.Duration, first, last int64, fn func([]float64) float64) series {
	n := int(last-first) + 1
	groups := make([][]float64, n)
	for i, t := range times {
		idx := bucketIndex(t, width) - first
		if idx < 0 || idx >= int64(n) {
			continue
		}
		groups[idx] = append(groups[idx], values[i])
	}
	out := series{first: first, values: make([]float64, n), ok: make([]bool, n)}
	for i, g := range groups {
		if len(g) == 0 {
			continue
		}
		out.values[i] = fn(g)
		out.ok[i] = true
	}
	return out
}

// forwardFill copies the last defined value into empty windows. Windows
// before the first defined value stay undefined.
func (s series) forwardFill() series {
	var last float64
	seen := false
	for i := range s.values {
		if s.ok[i] {
			last, seen = s.values[i], true
			continue
		}
		if seen {
			s.values[i], s.ok[i] = last, true
		}
	}
	return s
}

func (s series) at(idx int64) (float64, bool) {
	i := idx - s.first
	if i < 0 || i >= int64(len(s.values)) {
		return 0, false
	}
	return s.values[i], s.ok[i]
}

func p90(values []float64) float64 { return percentile(values, 90) }

// concurrencySeries builds the per-window minimum of the concurrency gauge.
// Logs without a gauge column count the distinct thread names seen in each
// window instead.
func concurrencySeries(samples []samplelog.Sample, width time.Duration, first, last int64) series {
	if gaugeMissing(samples) {
		return threadCountSeries(samples, width, first, last).forwardFill()
	}
	times := make([]time.Time, len(samples))
	gauge := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Timestamp
		gauge[i] = float64(s.Concurrency)
	}
	return reduceByWindow(times, gauge, width, first, last, minValue).forwardFill()
}

func gaugeMissing(samples []samplelog.Sample) bool {
	for _, s := range samples {
		if !s.GaugeMissing {
			return false
		}
	}
	return len(samples) > 0
}

func threadCountSeries(samples []samplelog.Sample, width time.Duration, first, last int64) series {
	n := int(last-first) + 1
	threads := make([]map[string]struct{}, n)
	out := series{first: first, values: make([]float64, n), ok: make([]bool, n)}
	for _, s := range samples {
		idx := bucketIndex(s.Timestamp, width) - first
		if idx < 0 || idx >= int64(n) {
			continue
		}
		out.ok[idx] = true
		if s.ThreadName == "" {
			continue
		}
		if threads[idx] == nil {
			threads[idx] = make(map[string]struct{})
		}
		threads[idx][s.ThreadName] = struct{}{}
	}
	for i, names := range threads {
		out.values[i] = float64(len(names))
	}
	return out
}

// ResampleOverlay buckets samples into windows of width and returns, per
// window, the p90 elapsed time and the minimum concurrency gauge. Empty
// windows repeat the previous window's values. Samples spanning more than
// MaxWindows windows yield no series; Summarize reports that as an error.
func ResampleOverlay(samples []samplelog.Sample, width BucketWidth) []OverlayPoint {
	if len(samples) == 0 || width.Width <= 0 {
		return nil
	}
	times := make([]time.Time, len(samples))
	elapsed := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Timestamp
		elapsed[i] = float64(s.ElapsedMs)
	}
	first, last := bucketRange(times, width.Width)
	if checkWindows(first, last, width) != nil {
		return nil
	}
	latency := reduceByWindow(times, elapsed, width.Width, first, last, p90).forwardFill()
	gauge := concurrencySeries(samples, width.Width, first, last)

	points := make([]OverlayPoint, 0, last-first+1)
	for idx := first; idx <= last; idx++ {
		lat, okLat := latency.at(idx)
		conc, okConc := gauge.at(idx)
		if !okLat || !okConc {
			continue
		}
		points = append(points, OverlayPoint{
			Time:          bucketStart(idx, width.Width),
			P90ResponseMs: lat,
			Concurrency:   int(conc),
		})
	}
	return points
}
