package samplelog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrTokenMetricsUnavailable marks a token metrics file that cannot provide
// KPIs. Callers treat it as a recoverable condition, not a run failure.
var ErrTokenMetricsUnavailable = errors.New("token metrics unavailable")

// TokenMetricColumns lists the columns a token metrics file must carry.
var TokenMetricColumns = []string{
	"timestamp",
	"load_duration_ms",
	"prompt_eval_duration_ms",
	"total_duration_ms",
	"eval_count",
	"eval_duration_ms",
}

// TokenMetricRecord holds the raw timing fields reported for one LLM request.
type TokenMetricRecord struct {
	Timestamp            time.Time `json:"timestamp"`
	LoadDurationMs       float64   `json:"loadDurationMs"`
	PromptEvalDurationMs float64   `json:"promptEvalDurationMs"`
	TotalDurationMs      float64   `json:"totalDurationMs"`
	EvalCount            int64     `json:"evalCount"`
	EvalDurationMs       float64   `json:"evalDurationMs"`
}

// ReadTokenMetrics loads the companion token metrics CSV written by a run.
func ReadTokenMetrics(path string) ([]TokenMetricRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseTokenMetrics(file)
}

// ParseTokenMetrics decodes token metrics rows from r. Missing columns are
// reported as ErrTokenMetricsUnavailable.
func ParseTokenMetrics(r io.Reader) ([]TokenMetricRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrTokenMetricsUnavailable, ErrEmptyLog)
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrTokenMetricsUnavailable, err)
	}
	index := indexColumns(header)
	if missing := missingColumns(index, TokenMetricColumns...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrTokenMetricsUnavailable, strings.Join(missing, ", "))
	}

	var records []TokenMetricRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}

		ts, err := ParseTimestamp(field(row, index["timestamp"]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var values [5]float64
		for i, name := range TokenMetricColumns[1:] {
			v, err := parseNumber(field(row, index[name]))
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, name, err)
			}
			values[i] = v
		}
		evalCount := int64(values[3])
		if evalCount < 0 {
			evalCount = 0
		}
		records = append(records, TokenMetricRecord{
			Timestamp:            ts,
			LoadDurationMs:       values[0],
			PromptEvalDurationMs: values[1],
			TotalDurationMs:      values[2],
			EvalCount:            evalCount,
			EvalDurationMs:       values[4],
		})
	}
	return records, nil
}

// parseNumber treats blank cells as zero, matching how the generator writes
// requests that never produced a response.
func parseNumber(raw string) (float64, error) {
	if raw == "" || strings.EqualFold(raw, "nan") {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, nil
	}
	return v, nil
}
