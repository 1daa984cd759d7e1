package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testStringer string

func (s testStringer) String() string { return string(s) }

func TestInitAndLoggingToFile(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "nested", "loadpilot.log")

	if err := Init(logPath); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
	})

	LogEvent("hello %s", "world")
	LogCommand("start", "jmeter", []string{"-n", "-t", "plan.jmx"}, map[string]int{"threads": 2})
	_ = Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "hello world") {
		t.Fatalf("expected LogEvent content, got: %s", content)
	}
	if !strings.Contains(content, "[START] program=jmeter") {
		t.Fatalf("expected LogCommand content, got: %s", content)
	}
}

func TestInitFileOnly(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tui.log")
	if err := InitFileOnly(logPath); err != nil {
		t.Fatalf("InitFileOnly error: %v", err)
	}
	LogEvent("quiet line")
	if err := Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "quiet line") {
		t.Fatalf("expected file content, got: %s", data)
	}
}

func TestBuildCommandMessageDefaults(t *testing.T) {
	msg := buildCommandMessage(" ", " ", nil, map[string]any{"ok": true})
	if !strings.Contains(msg, "[EXEC]") {
		t.Fatalf("expected default stage, got: %s", msg)
	}
	if !strings.Contains(msg, "program=unknown") {
		t.Fatalf("expected default program, got: %s", msg)
	}
	if strings.Contains(msg, "args=") {
		t.Fatalf("expected no args, got: %s", msg)
	}
	if !strings.Contains(msg, "config={\"ok\":true}") {
		t.Fatalf("expected payload json, got: %s", msg)
	}
	if msg := buildCommandMessage("stop", "stoptest.sh", []string{"a", "b"}, nil); !strings.Contains(msg, `args="a b"`) || strings.Contains(msg, "config=") {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestFormatPayloadVariants(t *testing.T) {
	if got := formatPayload(nil); got != "null" {
		t.Fatalf("nil payload: %s", got)
	}
	if got := formatPayload(" "); got != `""` {
		t.Fatalf("empty string payload: %s", got)
	}
	if got := formatPayload([]byte("hi")); got != "hi" {
		t.Fatalf("byte payload: %s", got)
	}
	if got := formatPayload(testStringer("ok")); got != "ok" {
		t.Fatalf("stringer payload: %s", got)
	}
}

func TestInitFileOnlyDiscard(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	if err := InitFileOnly(""); err != nil {
		t.Fatalf("InitFileOnly error: %v", err)
	}
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	LogEvent("discard")
	if buf.Len() != 0 {
		t.Fatalf("expected log output discarded, got: %s", buf.String())
	}
}
