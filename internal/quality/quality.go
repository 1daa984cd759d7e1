// internal/quality/quality.go
// Package quality summarizes graded LLM responses exported by a load test.
package quality

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mwiater/loadpilot/internal/metrics"
)

// DefaultThreshold is the score a response needs to pass.
const DefaultThreshold = 0.5

var (
	// ErrUnsupportedMetric is returned for metrics without an implementation.
	ErrUnsupportedMetric = errors.New("quality metric not supported")
	// ErrUnknownMetric is returned by ParseMetric.
	ErrUnknownMetric = errors.New("unknown quality metric")
	// ErrNoRecords is returned when there is nothing to summarize.
	ErrNoRecords = errors.New("no response records")
)

// Metric names a quality measure.
type Metric int

const (
	Correctness Metric = iota
	AnswerRelevancy
	Faithfulness
	Hallucination
)

var metricNames = map[Metric]string{
	Correctness:     "correctness",
	AnswerRelevancy: "answer-relevancy",
	Faithfulness:    "faithfulness",
	Hallucination:   "hallucination",
}

func (m Metric) String() string {
	if name, ok := metricNames[m]; ok {
		return name
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// Metrics lists every known metric.
func Metrics() []Metric {
	return []Metric{Correctness, AnswerRelevancy, Faithfulness, Hallucination}
}

// ParseMetric resolves a metric name. Case, spaces and underscores are
// ignored.
func ParseMetric(name string) (Metric, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	if norm == "answerrelevancy" {
		norm = "answer-relevancy"
	}
	for m, n := range metricNames {
		if n == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// Result is the summary of one metric over a set of records.
type Result struct {
	Metric       string               `json:"metric"`
	Threshold    float64              `json:"threshold"`
	Count        int                  `json:"count"`
	Passed       int                  `json:"passed"`
	PassRatePct  float64              `json:"passRatePct"`
	Score        metrics.Distribution `json:"score"`
	ExactMatches int                  `json:"exactMatches"`
	Graded       int                  `json:"graded"`
}

// Summarize computes metric over records using DefaultThreshold.
func Summarize(metric Metric, records []Record) (Result, error) {
	return SummarizeWithThreshold(metric, records, DefaultThreshold)
}

// SummarizeWithThreshold computes metric over records. A record without a
// grader score is scored by strict exact match.
func SummarizeWithThreshold(metric Metric, records []Record, threshold float64) (Result, error) {
	if metric != Correctness {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
	}
	if len(records) == 0 {
		return Result{}, ErrNoRecords
	}

	res := Result{Metric: metric.String(), Threshold: threshold, Count: len(records)}
	scores := make([]float64, 0, len(records))
	for _, rec := range records {
		exact := ExactMatch(rec.Response, rec.Expected)
		if exact {
			res.ExactMatches++
		}
		score := 0.0
		switch {
		case rec.Score != nil:
			score = *rec.Score
			res.Graded++
		case exact:
			score = 1
		}
		if score >= threshold {
			res.Passed++
		}
		scores = append(scores, score)
	}
	res.PassRatePct = float64(res.Passed) / float64(res.Count) * 100
	res.Score = metrics.Describe(scores)
	return res, nil
}

// ExactMatch compares trimmed, upper-cased answers.
func ExactMatch(actual, expected string) bool {
	return normalize(actual) == normalize(expected)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
