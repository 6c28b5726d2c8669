// Package session drives one debugger connection: it listens for the
// debugged process to connect back, sends sequence-numbered commands and
// waits for the responses they should produce.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/dbgwire/internal/domain"
	"github.com/vburojevic/dbgwire/internal/match"
	"github.com/vburojevic/dbgwire/internal/transport"
	"github.com/vburojevic/dbgwire/internal/waiter"
	"github.com/vburojevic/dbgwire/internal/wire"
	"go.uber.org/zap"
)

var (
	ErrNotListening    = errors.New("session: not listening")
	ErrNotConnected    = errors.New("session: not connected")
	ErrAlreadyAccepted = errors.New("session: connection already accepted")
	ErrAcceptTimeout   = errors.New("session: timed out waiting for the debugger to connect")
)

// DefaultProtocolVersion is sent in the version handshake.
const DefaultProtocolVersion = "1.0"

// Waits groups the retry budgets used by a Controller.
type Waits struct {
	Response waiter.Policy
	Thread   waiter.Policy
	Ack      waiter.Policy
	Settle   time.Duration
}

// DefaultWaits mirrors the budgets the debugger tests were tuned for.
func DefaultWaits() Waits {
	return Waits{
		Response: waiter.DefaultPolicy(),
		Thread:   waiter.ThreadPolicy(),
		Ack:      waiter.AckPolicy(),
		Settle:   waiter.DefaultSettle,
	}
}

// Controller owns the listening socket, the outbound half of the accepted
// connection and the sequence and breakpoint counters.
type Controller struct {
	logger        *zap.Logger
	waiter        *waiter.Waiter
	waits         Waits
	file          string
	version       string
	osTag         string
	acceptTimeout time.Duration
	onState       func(domain.RunState)

	ctx    context.Context
	cancel context.CancelFunc

	// writeMu serializes writes, including their acknowledgement poll, and
	// guards the counters.
	writeMu        sync.Mutex
	seq            int
	nextBreakpoint int

	// connMu guards the socket handles. It is never held across reads,
	// writes or waits.
	connMu sync.RWMutex
	ln     net.Listener
	conn   net.Conn
	reader *transport.Reader

	log OperationLog
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the clock used for waits.
func WithClock(cl clock.Clock) Option {
	return func(c *Controller) { c.waiter = waiter.New(cl) }
}

// WithWaits overrides the retry budgets.
func WithWaits(w Waits) Option {
	return func(c *Controller) { c.waits = w }
}

// WithFile sets the debugged file referenced by breakpoint commands.
func WithFile(path string) Option {
	return func(c *Controller) { c.file = path }
}

// WithProtocolVersion sets the version and IDE OS tag sent in the handshake.
func WithProtocolVersion(version, osTag string) Option {
	return func(c *Controller) {
		if version != "" {
			c.version = version
		}
		if osTag != "" {
			c.osTag = osTag
		}
	}
}

// WithAcceptTimeout bounds Accept. Zero waits forever.
func WithAcceptTimeout(d time.Duration) Option {
	return func(c *Controller) { c.acceptTimeout = d }
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(domain.RunState)) Option {
	return func(c *Controller) { c.onState = fn }
}

// New creates a Controller. Nothing is bound until Listen.
func New(opts ...Option) *Controller {
	c := &Controller{
		logger:  zap.NewNop(),
		waiter:  waiter.New(nil),
		waits:   DefaultWaits(),
		version: DefaultProtocolVersion,
		osTag:   defaultOSTag(),
		seq:     -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

func defaultOSTag() string {
	if runtime.GOOS == "windows" {
		return "WINDOWS"
	}
	return "UNIX"
}

// File returns the debugged file used in breakpoint commands.
func (c *Controller) File() string {
	return c.file
}

// OperationLog returns a copy of the operation log.
func (c *Controller) OperationLog() []string {
	return c.log.Entries()
}

// Logf appends a free-form entry to the operation log.
func (c *Controller) Logf(format string, args ...any) {
	c.log.Addf(format, args...)
}

func (c *Controller) setState(s domain.RunState) {
	c.logger.Debug("session state", zap.String("state", string(s)))
	if c.onState != nil {
		c.onState(s)
	}
}

// Listen binds the listening socket. Port 0 picks an ephemeral port.
func (c *Controller) Listen(host string, port int) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.ln != nil {
		return fmt.Errorf("session: already listening on %s", c.ln.Addr())
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	c.ln = ln
	c.logger.Debug("listening", zap.String("addr", ln.Addr().String()))
	c.setState(domain.StateListening)
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (c *Controller) Addr() net.Addr {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Port returns the bound port, or 0 before Listen.
func (c *Controller) Port() int {
	if tcp, ok := c.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Accept blocks until exactly one peer connects, starts the transport
// reader and sends the version handshake. The listener is closed once the
// connection is accepted.
func (c *Controller) Accept(ctx context.Context) error {
	c.connMu.RLock()
	ln, conn := c.ln, c.conn
	c.connMu.RUnlock()
	if conn != nil {
		return ErrAlreadyAccepted
	}
	if ln == nil {
		return ErrNotListening
	}

	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- accepted{conn: conn, err: err}
	}()

	var timeout <-chan time.Time
	if c.acceptTimeout > 0 {
		timer := c.waiter.Clock().Timer(c.acceptTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	c.logger.Debug("waiting in accept", zap.String("addr", ln.Addr().String()))
	var res accepted
	select {
	case res = <-ch:
	case <-ctx.Done():
		ln.Close()
		return ctx.Err()
	case <-c.ctx.Done():
		ln.Close()
		return ErrNotListening
	case <-timeout:
		ln.Close()
		return ErrAcceptTimeout
	}
	if res.err != nil {
		return fmt.Errorf("accept: %w", res.err)
	}
	ln.Close()
	c.logger.Debug("accepted", zap.String("remote", res.conn.RemoteAddr().String()))

	reader := transport.NewReader(res.conn, transport.WithLogger(c.logger.Named("reader")))
	c.connMu.Lock()
	c.conn = res.conn
	c.reader = reader
	c.connMu.Unlock()
	reader.Start(c.ctx)
	c.setState(domain.StateConnected)

	// The first command is always the version.
	if err := c.WriteVersion(ctx); err != nil {
		return err
	}
	c.log.Add("start_socket")
	c.setState(domain.StateHandshaked)
	return nil
}

// Reader returns the transport reader, or nil before Accept.
func (c *Controller) Reader() *transport.Reader {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.reader
}

// LastReceived returns the most recent complete record.
func (c *Controller) LastReceived() string {
	if r := c.Reader(); r != nil {
		return r.Last()
	}
	return ""
}

// NextSeq allocates the next sequence number: 1, 3, 5, ... The odd
// numbering leaves the even numbers to the peer.
func (c *Controller) NextSeq() int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.nextSeqLocked()
}

func (c *Controller) nextSeqLocked() int {
	c.seq += 2
	return c.seq
}

// NextBreakpointID allocates a session-unique breakpoint id starting at 1.
func (c *Controller) NextBreakpointID() int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.nextBreakpoint++
	return c.nextBreakpoint
}

// Write sends a fully formed record, records it in the operation log and
// polls briefly for the peer to publish anything new. It does not assert
// that the command succeeded.
func (c *Controller) Write(ctx context.Context, rec wire.Record) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(ctx, rec)
}

// Send allocates a sequence number and writes id with payload.
func (c *Controller) Send(ctx context.Context, id wire.CommandID, payload ...string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(ctx, wire.NewCommand(id, c.nextSeqLocked(), payload...))
}

func (c *Controller) writeLocked(ctx context.Context, rec wire.Record) error {
	c.connMu.RLock()
	conn, reader := c.conn, c.reader
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	_, since := reader.Snapshot()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	if _, err := conn.Write(rec.Encode()); err != nil {
		c.log.Addf("write failed: %s: %v", rec, err)
		return fmt.Errorf("write %s: %w", describe(rec), err)
	}
	c.logger.Debug("written", zap.String("record", rec.String()))
	c.log.Addf("write %s: %s", describe(rec), rec)

	if _, err := c.waiter.Changed(ctx, reader, since, c.waits.Settle, c.waits.Ack); err != nil {
		return err
	}
	return nil
}

func describe(rec wire.Record) string {
	if id, ok := rec.Command(); ok {
		return id.String()
	}
	return "record"
}

// Wait polls the last received record until m matches or the policy runs out.
func (c *Controller) Wait(ctx context.Context, m match.Matcher, p waiter.Policy, what string) (string, error) {
	r := c.Reader()
	if r == nil {
		return "", ErrNotConnected
	}
	return c.waiter.Until(ctx, r, m, p, what)
}

// Close tears the session down and waits for the reader to stop.
func (c *Controller) Close() error {
	c.cancel()

	c.connMu.RLock()
	ln, reader := c.ln, c.reader
	c.connMu.RUnlock()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if reader != nil {
		if err := reader.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		<-reader.Done()
	}
	return errors.Join(errs...)
}
