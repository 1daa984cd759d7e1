package metrics

import (
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/mwiater/loadpilot/internal/samplelog"
)

var baseTime = time.Date(2024, 6, 10, 6, 13, 20, 0, time.UTC)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func scenarioSamples() []samplelog.Sample {
	labels := []string{"A", "A", "B"}
	samples := make([]samplelog.Sample, 0, 12)
	for i := 0; i < 12; i++ {
		samples = append(samples, samplelog.Sample{
			Timestamp:   baseTime.Add(time.Duration(i) * time.Second),
			Label:       labels[i%3],
			ElapsedMs:   int64(100 * (i + 1)),
			Success:     i != 2 && i != 5,
			Concurrency: 1 + i/4,
		})
	}
	return samples
}

func TestSummarizeScenario(t *testing.T) {
	summary, err := Summarize(scenarioSamples())
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if summary.TotalSamples != 12 || summary.Passed != 10 || summary.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if math.Round(summary.FailPct*100)/100 != 16.67 {
		t.Fatalf("expected fail%% 16.67, got %.4f", summary.FailPct)
	}
	if summary.ErrorRate != summary.FailPct {
		t.Fatalf("error rate should equal fail%%")
	}
	if summary.Status != StatusFail {
		t.Fatalf("expected fail status, got %s", summary.Status)
	}
	if len(summary.Labels) != 2 {
		t.Fatalf("expected 2 label rows, got %d", len(summary.Labels))
	}
	a, b := summary.Labels[0], summary.Labels[1]
	if a.Label != "A" || a.Samples != 8 || a.Errors != 0 || a.ErrorRatePct != 0 {
		t.Fatalf("unexpected row A: %+v", a)
	}
	if b.Label != "B" || b.Samples != 4 || b.Errors != 2 || b.ErrorRatePct != 50 {
		t.Fatalf("unexpected row B: %+v", b)
	}
	if b.MinMs != 300 || b.MaxMs != 1200 {
		t.Fatalf("unexpected B min/max: %+v", b)
	}
	if summary.Duration != 11*time.Second || summary.BucketWidth.Label != "5s" {
		t.Fatalf("unexpected duration/bucket: %s %s", summary.Duration, summary.BucketWidth)
	}
	if !summary.StartTime.Equal(baseTime) {
		t.Fatalf("unexpected start time %s", summary.StartTime)
	}
	if summary.Tokens != nil {
		t.Fatalf("tokens should be nil without enrichment")
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if _, err := Summarize(nil); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
}

func TestSummarizeSingleSample(t *testing.T) {
	summary, err := Summarize([]samplelog.Sample{{Timestamp: baseTime, Label: "only", ElapsedMs: 420, Success: true, Concurrency: 1}})
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if summary.P90ResponseMs != 420 || summary.Labels[0].P90Ms != 420 {
		t.Fatalf("single sample percentile should equal the sample, got %v", summary.P90ResponseMs)
	}
	if summary.FailPct != 0 || summary.ErrorRate != 0 || summary.Status != StatusSuccess {
		t.Fatalf("zero failures should report 0%% error rate: %+v", summary)
	}
	if len(summary.Overlay) != 1 {
		t.Fatalf("expected one overlay point, got %d", len(summary.Overlay))
	}
}

func TestSummarizeProperties(t *testing.T) {
	inputs := [][]int64{
		{5},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		{900, 12, 40, 40, 40, 7000, 3},
		{0, 0, 0, 1},
	}
	for n, elapsed := range inputs {
		samples := make([]samplelog.Sample, len(elapsed))
		for i, e := range elapsed {
			samples[i] = samplelog.Sample{
				Timestamp: baseTime.Add(time.Duration(i) * 700 * time.Millisecond),
				Label:     "L",
				ElapsedMs: e,
				Success:   i%3 != 0,
			}
		}
		summary, err := Summarize(samples)
		if err != nil {
			t.Fatalf("case %d: %v", n, err)
		}
		if summary.Passed+summary.Failed != summary.TotalSamples {
			t.Fatalf("case %d: counts do not add up", n)
		}
		if !almostEqual(summary.PassPct+summary.FailPct, 100) {
			t.Fatalf("case %d: pass%% + fail%% = %v", n, summary.PassPct+summary.FailPct)
		}
		values := make([]float64, len(elapsed))
		for i, e := range elapsed {
			values[i] = float64(e)
		}
		sort.Float64s(values)
		median := percentile(values, 50)
		if summary.P90ResponseMs < median || summary.P90ResponseMs > values[len(values)-1] {
			t.Fatalf("case %d: p90 %v outside [median %v, max %v]", n, summary.P90ResponseMs, median, values[len(values)-1])
		}
	}
}

func TestSummarizeIdempotent(t *testing.T) {
	samples := scenarioSamples()
	first, err := Summarize(samples)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Summarize(samples)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("summaries differ:\n%+v\n%+v", first, second)
	}
}

func TestPercentileLinearInterpolation(t *testing.T) {
	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	if got := percentile(values, 90); !almostEqual(got, 9.1) {
		t.Fatalf("p90 = %v, want 9.1", got)
	}
	if got := percentile(values, 50); !almostEqual(got, 5.5) {
		t.Fatalf("p50 = %v, want 5.5", got)
	}
	if values[0] != 10 {
		t.Fatalf("percentile must not reorder its input")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                      "0 seconds",
		time.Second:                            "1 second",
		90 * time.Second:                       "1 minute, 30 seconds",
		5*time.Minute + 30*time.Second:         "5 minutes, 30 seconds",
		65*time.Minute + 1500*time.Millisecond: "65 minutes, 1 second",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%s) = %q, want %q", in, got, want)
		}
	}
}
