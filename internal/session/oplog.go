package session

import (
	"fmt"
	"sync"
)

// OperationLog is an append-only trail of controller-side actions, dumped
// verbatim when a run fails.
type OperationLog struct {
	mu      sync.Mutex
	entries []string
}

// Add appends one entry.
func (l *OperationLog) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Addf appends a formatted entry.
func (l *OperationLog) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the log.
func (l *OperationLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *OperationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
