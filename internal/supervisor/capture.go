package supervisor

import (
	"bytes"
	"strings"
	"sync"
)

// capture is an append-only, goroutine-safe line buffer.
type capture struct {
	mu    sync.Mutex
	lines []string
}

func (c *capture) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *capture) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *capture) contains(s string) bool {
	return strings.Contains(strings.Join(c.snapshot(), "\n"), s)
}

// lineWriter splits what the process writes into lines for a capture,
// optionally echoing each line. It is the process's stdout or stderr, so
// exec's copy goroutine owns the pipe and Wait bounds it with WaitDelay.
type lineWriter struct {
	mu      sync.Mutex
	c       *capture
	echo    func(string)
	partial []byte
}

func newLineWriter(c *capture, echo func(string)) *lineWriter {
	return &lineWriter{c: c, echo: echo}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

// flush records a trailing line that had no newline.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r")
	w.c.add(line)
	if w.echo != nil {
		w.echo(line)
	}
}
