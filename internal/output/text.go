package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/vburojevic/dbgwire/internal/domain"
)

// TextWriter writes short human-readable lines. Step and state events are
// only written when verbose.
type TextWriter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewTextWriter creates a writer on w.
func NewTextWriter(w io.Writer, verbose bool) *TextWriter {
	return &TextWriter{w: w, verbose: verbose}
}

func (t *TextWriter) printf(format string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, format, args...)
	return err
}

func (t *TextWriter) WriteRunStart(e *domain.RunStart) error {
	return t.printf("=== RUN   %s (%s, port %d)\n", e.Scenario, e.File, e.Port)
}

func (t *TextWriter) WriteStateChange(e *domain.StateChange) error {
	if !t.verbose {
		return nil
	}
	return t.printf("    state %s -> %s\n", e.From, e.To)
}

func (t *TextWriter) WriteStep(e *domain.StepEvent) error {
	if !t.verbose {
		return nil
	}
	if e.Detail == "" {
		return t.printf("    step %d %s\n", e.Index+1, e.Action)
	}
	return t.printf("    step %d %s %s\n", e.Index+1, e.Action, e.Detail)
}

func (t *TextWriter) WriteRunEnd(e *domain.RunEnd) error {
	status := "PASS"
	if e.State != string(domain.StateVerified) {
		status = "FAIL"
	}
	if err := t.printf("--- %s: %s (%.2fs)\n", status, e.Scenario, e.DurationSeconds); err != nil {
		return err
	}
	if e.Error != "" && e.Report != "" {
		return t.printf("    report: %s\n", e.Report)
	}
	return nil
}
