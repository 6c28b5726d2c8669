// Package output writes run events as NDJSON for machines or as plain
// lines for people.
package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vburojevic/dbgwire/internal/domain"
)

// SchemaVersion is the version of every emitted object.
const SchemaVersion = domain.SchemaVersion

// ErrorOutput is the ndjson shape of a command error.
type ErrorOutput struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// NDJSONWriter writes one JSON object per line. It is safe for concurrent
// use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer on w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{enc: enc}
}

func (w *NDJSONWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (w *NDJSONWriter) WriteRunStart(e *domain.RunStart) error       { return w.write(e) }
func (w *NDJSONWriter) WriteStateChange(e *domain.StateChange) error { return w.write(e) }
func (w *NDJSONWriter) WriteStep(e *domain.StepEvent) error          { return w.write(e) }
func (w *NDJSONWriter) WriteRunEnd(e *domain.RunEnd) error           { return w.write(e) }

// WriteError writes an error object. Only the first hint is used.
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := &ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.write(out)
}

// Write encodes any value as one line.
func (w *NDJSONWriter) Write(v any) error {
	return w.write(v)
}
