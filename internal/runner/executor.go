// internal/runner/executor.go
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	newCommand   = exec.CommandContext
	startCommand = exec.Command
)

// Executor runs an invocation to completion. Output lines of the process
// are written to stdout as they arrive.
type Executor interface {
	Execute(ctx context.Context, inv Invocation, stdout io.Writer) error
}

// Signaler asks a running load test to shut down.
type Signaler interface {
	Signal() error
}

// ProcessExecutor launches the invocation as a child process.
type ProcessExecutor struct {
	// WaitDelay bounds how long output pipes are drained after the
	// process is killed.
	WaitDelay time.Duration
}

// Execute runs inv and blocks until it exits. A non-zero exit is returned
// as an error carrying the tail of stderr.
func (e ProcessExecutor) Execute(ctx context.Context, inv Invocation, stdout io.Writer) error {
	if inv.Program == "" {
		return errors.New("no load generator binary configured")
	}
	cmd := newCommand(ctx, inv.Program, inv.Args...)
	if stdout != nil {
		cmd.Stdout = stdout
	}
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	if err := cmd.Run(); err != nil {
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("%s: %w: %s", inv.Program, err, tail)
		}
		return fmt.Errorf("%s: %w", inv.Program, err)
	}
	return nil
}

// ScriptSignaler runs the load generator's stop script without waiting for
// it to finish.
type ScriptSignaler struct {
	Script string
}

// Signal starts the stop script.
func (s ScriptSignaler) Signal() error {
	if strings.TrimSpace(s.Script) == "" {
		return errors.New("no stop script configured")
	}
	cmd := startCommand(s.Script)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start stop script %s: %w", s.Script, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

const stderrTailBytes = 2048

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// lineWriter calls emit once per complete line written to it.
type lineWriter struct {
	mu      sync.Mutex
	pending bytes.Buffer
	emit    func(line string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.Write(p)
	for {
		data := w.pending.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(data[:idx]), "\r")
		w.pending.Next(idx + 1)
		if strings.TrimSpace(line) != "" {
			w.emit(line)
		}
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if line := strings.TrimSpace(w.pending.String()); line != "" {
		w.emit(line)
	}
	w.pending.Reset()
}
