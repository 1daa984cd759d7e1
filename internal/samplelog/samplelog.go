// internal/samplelog/samplelog.go
// Package samplelog reads the tabular artifacts written by the external load
// generator: the JTL sample log and the companion token metrics CSV.
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

var (
	// ErrEmptyLog is returned when a file exists but holds no header row.
	ErrEmptyLog = errors.New("log file is empty")
	// ErrMissingColumns is returned when a sample log lacks a required column.
	ErrMissingColumns = errors.New("missing required columns")
)

// Column names used by JMeter's CSV result writer.
const (
	colTimeStamp   = "timeStamp"
	colElapsed     = "elapsed"
	colLabel       = "label"
	colSuccess     = "success"
	colThreadName  = "threadName"
	colAllThreads  = "allThreads"
	colGroupThread = "grpThreads"
)

// Sample is one logged request outcome from a run.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	Label       string    `json:"label"`
	ElapsedMs   int64     `json:"elapsedMs"`
	Success     bool      `json:"success"`
	Concurrency int       `json:"concurrency"`
	ThreadName  string    `json:"threadName,omitempty"`
	// GaugeMissing is set when the log has no allThreads or grpThreads
	// column, so Concurrency carries no value.
	GaugeMissing bool `json:"-"`
}

// ReadSamples loads every row of a JTL (CSV) sample log.
// A file holding only a header yields an empty slice and no error.
func ReadSamples(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseSamples(file)
}

// ParseSamples decodes a JTL sample log from r.
func ParseSamples(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyLog
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := indexColumns(header)
	if missing := missingColumns(index, colTimeStamp, colElapsed, colLabel, colSuccess); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	gaugeCol := -1
	if idx, ok := index[colAllThreads]; ok {
		gaugeCol = idx
	} else if idx, ok := index[colGroupThread]; ok {
		gaugeCol = idx
	}

	var samples []Sample
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		ts, err := ParseTimestamp(field(record, index[colTimeStamp]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		elapsed, err := strconv.ParseFloat(field(record, index[colElapsed]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid elapsed %q", line, field(record, index[colElapsed]))
		}
		if elapsed < 0 {
			elapsed = 0
		}

		sample := Sample{
			Timestamp:    ts,
			Label:        field(record, index[colLabel]),
			ElapsedMs:    int64(elapsed),
			Success:      ParseSuccess(field(record, index[colSuccess])),
			GaugeMissing: gaugeCol < 0,
		}
		if idx, ok := index[colThreadName]; ok {
			sample.ThreadName = field(record, idx)
		}
		if gaugeCol >= 0 {
			if v, err := strconv.Atoi(field(record, gaugeCol)); err == nil && v >= 0 {
				sample.Concurrency = v
			}
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// ParseSuccess normalizes the success column. JMeter writes "true"/"false";
// other tools write booleans as 1/0.
func ParseSuccess(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "t", "yes":
		return true
	default:
		return false
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006/01/02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// epochSecondsLimit separates epoch seconds from epoch milliseconds. As
// milliseconds it is early 1973; as seconds it is year 5138.
const epochSecondsLimit = 100_000_000_000

// ParseTimestamp accepts epoch milliseconds (JMeter's default) or epoch
// seconds, either integral or fractional, or one of the common textual
// layouts in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > -epochSecondsLimit && n < epochSecondsLimit {
			return time.Unix(n, 0).UTC(), nil
		}
		return time.UnixMilli(n).UTC(), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
		}
		if math.Abs(f) < epochSecondsLimit {
			f *= 1000
		}
		micros := math.Round(f * 1000)
		if math.Abs(micros) >= math.MaxInt64 {
			return time.Time{}, fmt.Errorf("timestamp %q out of range", raw)
		}
		return time.UnixMicro(int64(micros)).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func indexColumns(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return index
}

func missingColumns(index map[string]int, required ...string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
