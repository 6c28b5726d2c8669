// Package supervisor launches the debugged process, drains its output and
// decides whether the run succeeded.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultSuccessMarker must appear on the process's stdout for a run to pass.
const DefaultSuccessMarker = "TEST SUCEEDED"

// Policy controls the liveness loop and verification.
type Policy struct {
	// PollInterval is the liveness check period.
	PollInterval time.Duration
	// WarnAfter and FailAfter count polls where the companion is gone but
	// the process still runs.
	WarnAfter int
	FailAfter int
	// FinishAttempts × FinishInterval bounds the wait for the companion to
	// report success after the process exits.
	FinishAttempts int
	FinishInterval time.Duration
	SuccessMarker  string
	// RequireZeroExit fails runs whose process exits with a positive code.
	RequireZeroExit bool
	// OutputGrace is how long output is still read after the process
	// exits. Children that inherited its stdout or stderr are cut off then.
	OutputGrace time.Duration
}

// DefaultPolicy returns the standard polling and verification settings.
func DefaultPolicy() Policy {
	return Policy{
		PollInterval:   200 * time.Millisecond,
		WarnAfter:      20,
		FailAfter:      100,
		FinishAttempts: 100,
		FinishInterval: 100 * time.Millisecond,
		SuccessMarker:  DefaultSuccessMarker,
		OutputGrace:    DefaultOutputGrace,
	}
}

// DefaultOutputGrace bounds reading output after the process exits.
const DefaultOutputGrace = time.Second

// Companion is the task driving the debug session alongside the process.
type Companion interface {
	Alive() bool
	FinishedOK() bool
	OperationLog() []string
}

// companionErr is optionally implemented by companions that keep the
// error they stopped with.
type companionErr interface {
	Err() error
}

// Result describes a run that passed verification.
type Result struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
	Duration time.Duration
}

// Supervisor runs one process at a time.
type Supervisor struct {
	logger *zap.Logger
	clock  clock.Clock
	policy Policy
	echo   io.Writer
	echoMu sync.Mutex
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for polling.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(s *Supervisor) { s.policy = p }
}

// WithEcho copies every captured output line to w as it arrives.
func WithEcho(w io.Writer) Option {
	return func(s *Supervisor) { s.echo = w }
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		logger: zap.NewNop(),
		clock:  clock.New(),
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.PollInterval <= 0 {
		s.policy.PollInterval = time.Millisecond
	}
	if s.policy.SuccessMarker == "" {
		s.policy.SuccessMarker = DefaultSuccessMarker
	}
	if s.policy.OutputGrace <= 0 {
		s.policy.OutputGrace = DefaultOutputGrace
	}
	return s
}

// Policy returns the active policy.
func (s *Supervisor) Policy() Policy {
	return s.policy
}

// Run starts the process described by l and blocks until it exits and has
// been verified. companion may be nil. A run that fails verification
// returns a *Failure.
func (s *Supervisor) Run(ctx context.Context, l Launch, companion Companion) (*Result, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	args := l.Args()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = l.WorkDir()
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	var stdout, stderr capture
	stdoutW := newLineWriter(&stdout, s.echoFunc("stdout"))
	stderrW := newLineWriter(&stderr, s.echoFunc("stderr"))
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.WaitDelay = s.policy.OutputGrace

	s.logger.Debug("launching", zap.Strings("args", args), zap.String("dir", cmd.Dir))
	start := s.clock.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}

	// Wait returns once the process has exited and its output is copied,
	// or OutputGrace after exit if something else still holds the pipes.
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		err := cmd.Wait()
		stdoutW.flush()
		stderrW.flush()
		if errors.Is(err, exec.ErrWaitDelay) {
			s.logger.Debug("output still open after exit, closed", zap.Duration("grace", s.policy.OutputGrace))
		}
	}()

	fail := func(reason string, cause error) *Failure {
		f := &Failure{
			Reason:   reason,
			ExitCode: exitCode(cmd.ProcessState),
			Stdout:   stdout.snapshot(),
			Stderr:   stderr.snapshot(),
			Cause:    cause,
		}
		if companion != nil {
			f.Log = companion.OperationLog()
		}
		return f
	}
	kill := func() {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("kill failed", zap.Error(err))
		}
		<-exited
	}

	ticker := s.clock.Ticker(s.policy.PollInterval)
	defer ticker.Stop()
	strikes := 0
wait:
	for {
		select {
		case <-exited:
			break wait
		case <-ctx.Done():
			kill()
			return nil, fail("Run aborted before the process exited.", context.Cause(ctx))
		case <-ticker.C:
			if companion == nil || companion.Alive() {
				continue
			}
			strikes++
			if strikes == s.policy.WarnAfter {
				s.logger.Warn("scenario task finished but the process is still running",
					zap.Int("polls", strikes))
			}
			if strikes >= s.policy.FailAfter {
				kill()
				return nil, fail("The other process should've exited but still didn't (timeout for process to exit).", nil)
			}
		}
	}

	code := exitCode(cmd.ProcessState)
	duration := s.clock.Since(start)
	s.logger.Debug("process exited", zap.Int("exit_code", code), zap.Duration("duration", duration))

	if code < 0 || (code > 0 && s.policy.RequireZeroExit) {
		return nil, fail(fmt.Sprintf("The other process exited with error code: %d", code), nil)
	}
	if !stdout.contains(s.policy.SuccessMarker) {
		return nil, fail(fmt.Sprintf("%s not found in stdout.", s.policy.SuccessMarker), nil)
	}
	if companion != nil {
		if err := s.awaitCompanion(ctx, companion); err != nil {
			var cause error
			if ce, ok := companion.(companionErr); ok {
				cause = ce.Err()
			}
			if cause == nil {
				cause = err
			}
			return nil, fail("The thread that was doing the tests didn't finish successfully.", cause)
		}
	}

	return &Result{
		ExitCode: code,
		Stdout:   stdout.snapshot(),
		Stderr:   stderr.snapshot(),
		Duration: duration,
	}, nil
}

var errCompanionUnfinished = errors.New("scenario task did not report success")

func (s *Supervisor) awaitCompanion(ctx context.Context, c Companion) error {
	for i := 0; i < s.policy.FinishAttempts; i++ {
		if c.FinishedOK() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.policy.FinishInterval):
		}
	}
	if c.FinishedOK() {
		return nil
	}
	return errCompanionUnfinished
}

func (s *Supervisor) echoFunc(stream string) func(string) {
	if s.echo == nil {
		return nil
	}
	return func(line string) {
		s.echoMu.Lock()
		defer s.echoMu.Unlock()
		_, _ = fmt.Fprintf(s.echo, "%s: %s\n", stream, line)
	}
}

// exitCode reports a signal-terminated process as the negated signal
// number.
func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return 0
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}

// tail returns at most n trailing lines.
func tail(lines []string, n int) []string {
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lo.Subset(lines, -n, uint(n))
}
