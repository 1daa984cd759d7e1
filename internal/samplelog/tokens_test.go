package samplelog

import (
	"errors"
	"strings"
	"testing"
)

func TestParseTokenMetrics(t *testing.T) {
	input := `timestamp,load_duration_ms,prompt_eval_duration_ms,total_duration_ms,eval_count,eval_duration_ms
2024-06-10 06:13:20,100,50,1150,20.0,900
2024-06-10 06:13:25,0,0,0,,0
`
	records, err := ParseTokenMetrics(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTokenMetrics error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.LoadDurationMs != 100 || first.PromptEvalDurationMs != 50 || first.TotalDurationMs != 1150 {
		t.Fatalf("unexpected durations: %+v", first)
	}
	if first.EvalCount != 20 || first.EvalDurationMs != 900 {
		t.Fatalf("unexpected eval fields: %+v", first)
	}
	if records[1].EvalCount != 0 {
		t.Fatalf("blank eval_count should parse as zero, got %d", records[1].EvalCount)
	}
}

func TestParseTokenMetricsMissingColumns(t *testing.T) {
	input := "timestamp,load_duration_ms,total_duration_ms\n1,2,3\n"
	_, err := ParseTokenMetrics(strings.NewReader(input))
	if !errors.Is(err, ErrTokenMetricsUnavailable) {
		t.Fatalf("expected ErrTokenMetricsUnavailable, got %v", err)
	}
	for _, col := range []string{"prompt_eval_duration_ms", "eval_count", "eval_duration_ms"} {
		if !strings.Contains(err.Error(), col) {
			t.Fatalf("expected %s in error, got %v", col, err)
		}
	}
}

func TestParseTokenMetricsEmpty(t *testing.T) {
	_, err := ParseTokenMetrics(strings.NewReader(""))
	if !errors.Is(err, ErrTokenMetricsUnavailable) || !errors.Is(err, ErrEmptyLog) {
		t.Fatalf("expected unavailable + empty errors, got %v", err)
	}
}

func TestParseTokenMetricsMalformedNumber(t *testing.T) {
	input := "timestamp,load_duration_ms,prompt_eval_duration_ms,total_duration_ms,eval_count,eval_duration_ms\n1718000000000,abc,0,0,0,0\n"
	_, err := ParseTokenMetrics(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "load_duration_ms") {
		t.Fatalf("expected malformed column error, got %v", err)
	}
}
