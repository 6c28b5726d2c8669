// Package transport owns the receive side of a debugger connection.
//
// A Reader reassembles newline-delimited records and publishes only the most
// recently completed chunk. Older, unconsumed values are overwritten rather
// than queued: a waiter that is slower than the peer can miss a transient
// record. Callers wait for the specific fragment they need right after each
// write instead of relying on what the slot held earlier.
package transport

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const defaultReadSize = 1024

// Reader is bound to one connection for its whole life.
type Reader struct {
	conn     net.Conn
	logger   *zap.Logger
	readSize int

	mu      sync.Mutex
	last    string
	gen     uint64
	updated chan struct{}

	trace *traceFilter

	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger traces published records at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReadSize sets the size of each socket read.
func WithReadSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.readSize = n
		}
	}
}

// NewReader creates a reader for conn. Call Start to begin consuming.
func NewReader(conn net.Conn, opts ...Option) *Reader {
	r := &Reader{
		conn:     conn,
		logger:   zap.NewNop(),
		readSize: defaultReadSize,
		updated:  make(chan struct{}),
		trace:    newTraceFilter(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the receive loop until the connection fails, Close is called
// or ctx is cancelled. It is a no-op after the first call.
func (r *Reader) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.run()
		go func() {
			select {
			case <-ctx.Done():
				r.Close()
			case <-r.done:
			}
		}()
	})
}

func (r *Reader) run() {
	defer close(r.done)

	chunk := make([]byte, r.readSize)
	var acc []byte
	for {
		n, err := r.conn.Read(chunk)
		if n > 0 {
			acc = append(acc, chunk[:n]...)
			if i := bytes.LastIndexByte(acc, '\n'); i >= 0 {
				r.publish(string(acc[:i+1]))
				acc = append([]byte(nil), acc[i+1:]...)
			}
		}
		if err != nil {
			// Teardown of the connection is the normal end of life.
			r.logger.Debug("reader stopped", zap.Error(err))
			return
		}
	}
}

func (r *Reader) publish(rec string) {
	r.mu.Lock()
	r.last = rec
	r.gen++
	close(r.updated)
	r.updated = make(chan struct{})
	r.mu.Unlock()

	if r.trace.changed(rec) {
		r.logger.Debug("received", zap.String("record", strings.TrimSpace(rec)))
	}
}

// Last returns the most recently published record, or "" before the first.
func (r *Reader) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Snapshot returns the last record together with its generation. The
// generation increases by one on every publication, even if the text repeats.
func (r *Reader) Snapshot() (string, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.gen
}

// Generation returns the number of records published so far.
func (r *Reader) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Updated returns a channel closed at the next publication.
func (r *Reader) Updated() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updated
}

// Done is closed once the receive loop has exited.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// Close closes the connection, which ends the receive loop.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.conn.Close()
	})
	return err
}
