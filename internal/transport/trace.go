package transport

import (
	"strings"
	"sync"
)

// traceFilter collapses consecutive identical records so verbose tracing
// prints each distinct value once.
type traceFilter struct {
	mu   sync.Mutex
	last string
	seen int
}

func newTraceFilter() *traceFilter {
	return &traceFilter{}
}

// changed reports whether rec differs from the previously traced record.
func (f *traceFilter) changed(rec string) bool {
	key := strings.TrimSpace(rec)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen > 0 && key == f.last {
		f.seen++
		return false
	}
	f.last = key
	f.seen = 1
	return true
}
