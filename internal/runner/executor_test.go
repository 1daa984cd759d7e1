package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestHelperProcess stands in for the load generator binary.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	switch args[0] {
	case "ok":
		fmt.Println("summary +      3 in 00:00:01")
		fmt.Println()
		fmt.Print("Tidying up ...")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "Error in NonGUIDriver")
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func useHelperProcess(t *testing.T) {
	t.Helper()
	orig := newCommand
	newCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { newCommand = orig })
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func TestProcessExecutorStreamsOutput(t *testing.T) {
	useHelperProcess(t)
	var got lineCollector
	w := &lineWriter{emit: got.add}
	err := ProcessExecutor{}.Execute(context.Background(), Invocation{Program: "jmeter", Args: []string{"ok"}}, w)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	w.Flush()
	want := []string{"summary +      3 in 00:00:01", "Tidying up ..."}
	if strings.Join(got.lines, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected lines: %q", got.lines)
	}
}

func TestProcessExecutorReportsStderr(t *testing.T) {
	useHelperProcess(t)
	err := ProcessExecutor{}.Execute(context.Background(), Invocation{Program: "jmeter", Args: []string{"fail"}}, nil)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "Error in NonGUIDriver") || !strings.Contains(err.Error(), "exit status 3") {
		t.Fatalf("error should carry exit status and stderr tail: %v", err)
	}
}

func TestProcessExecutorCancel(t *testing.T) {
	useHelperProcess(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := ProcessExecutor{WaitDelay: time.Second}.Execute(ctx, Invocation{Program: "jmeter", Args: []string{"hang"}}, nil)
	if err == nil {
		t.Fatal("expected error for killed process")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("cancel did not stop the process promptly: %s", elapsed)
	}
}

func TestProcessExecutorNoProgram(t *testing.T) {
	if err := (ProcessExecutor{}).Execute(context.Background(), Invocation{}, nil); err == nil {
		t.Fatal("expected error without a program")
	}
}

func TestScriptSignalerNoScript(t *testing.T) {
	if err := (ScriptSignaler{}).Signal(); err == nil {
		t.Fatal("expected error without a stop script")
	}
	if err := (ScriptSignaler{Script: "/nonexistent/stoptest.sh"}).Signal(); err == nil {
		t.Fatal("expected error for missing stop script")
	}
}

func TestLineWriter(t *testing.T) {
	var got lineCollector
	w := &lineWriter{emit: got.add}
	fmt.Fprint(w, "first li")
	fmt.Fprint(w, "ne\r\n\n   \nsecond\nthi")
	if len(got.lines) != 2 || got.lines[0] != "first line" || got.lines[1] != "second" {
		t.Fatalf("unexpected lines before flush: %q", got.lines)
	}
	w.Flush()
	w.Flush()
	if len(got.lines) != 3 || got.lines[2] != "thi" {
		t.Fatalf("unexpected lines after flush: %q", got.lines)
	}
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(5)
	fmt.Fprint(b, "abc")
	fmt.Fprint(b, "defgh")
	if got := b.String(); got != "defgh" {
		t.Fatalf("tail = %q", got)
	}
}
