package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init sends the standard logger to stdout and, when logPath is set, to an
// appended log file as well.
func Init(logPath string) error {
	return initOutput(logPath, true)
}

// InitFileOnly sends the standard logger to logPath only. It is used while
// a full-screen UI owns the terminal. An empty path discards output.
func InitFileOnly(logPath string) error {
	return initOutput(logPath, false)
}

func initOutput(logPath string, console bool) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if console {
		writers = append(writers, os.Stdout)
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogCommand records an external command launch with the settings it was
// started for.
func LogCommand(stage, program string, args []string, payload any) {
	log.Println(buildCommandMessage(stage, program, args, payload))
}

func buildCommandMessage(stage, program string, args []string, payload any) string {
	stageValue := strings.ToUpper(strings.TrimSpace(stage))
	if stageValue == "" {
		stageValue = "EXEC"
	}
	programValue := strings.TrimSpace(program)
	if programValue == "" {
		programValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", stageValue)}
	parts = append(parts, fmt.Sprintf("program=%s", programValue))
	if len(args) > 0 {
		parts = append(parts, fmt.Sprintf("args=%q", strings.Join(args, " ")))
	}
	if payload != nil {
		parts = append(parts, fmt.Sprintf("config=%s", formatPayload(payload)))
	}
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
