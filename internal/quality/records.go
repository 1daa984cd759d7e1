// internal/quality/records.go
package quality

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Record is one exported LLM response.
type Record struct {
	Prompt   string   `json:"prompt"`
	Response string   `json:"llm_response"`
	Expected string   `json:"correct_answer"`
	Score    *float64 `json:"score,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// recordSchema describes a response line. Prompt is optional because older
// exports did not carry it.
var recordSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"prompt":         map[string]any{"type": "string"},
		"llm_response":   map[string]any{"type": "string"},
		"correct_answer": map[string]any{"type": "string"},
		"score":          map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"reason":         map[string]any{"type": "string"},
	},
	"required": []string{"llm_response", "correct_answer"},
}

// LineError reports a response line that was skipped.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ReadRecords loads the responses file at path.
func ReadRecords(path string) ([]Record, []LineError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	return ParseRecords(file)
}

// ParseRecords decodes one JSON object per line. Lines that are not valid
// JSON or do not match the record schema are skipped and reported.
func ParseRecords(r io.Reader) ([]Record, []LineError, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(recordSchema))
	if err != nil {
		return nil, nil, fmt.Errorf("compile record schema: %w", err)
	}

	var (
		records []Record
		skipped []LineError
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			skipped = append(skipped, LineError{Line: lineNo, Err: errors.New("invalid JSON")})
			continue
		}
		result, err := schema.Validate(gojsonschema.NewStringLoader(line))
		if err != nil {
			skipped = append(skipped, LineError{Line: lineNo, Err: err})
			continue
		}
		if !result.Valid() {
			var errs []string
			for _, desc := range result.Errors() {
				errs = append(errs, desc.String())
			}
			skipped = append(skipped, LineError{Line: lineNo, Err: fmt.Errorf("schema validation failed: %s", strings.Join(errs, ", "))})
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped = append(skipped, LineError{Line: lineNo, Err: err})
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("read responses: %w", err)
	}
	return records, skipped, nil
}
