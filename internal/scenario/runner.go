package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/vburojevic/dbgwire/internal/domain"
	"github.com/vburojevic/dbgwire/internal/session"
	"github.com/vburojevic/dbgwire/internal/supervisor"
	"go.uber.org/zap"
)

// Report is the outcome of one run.
type Report struct {
	RunID    string
	Scenario string
	File     string
	Port     int
	State    domain.RunState
	States   []domain.RunState
	ExitCode int
	Duration time.Duration
	Stdout   []string
	Stderr   []string
	Log      []string
	Err      error
	// ReportPath is set when the failure report was written to disk.
	ReportPath string
}

// Failed reports whether the run ended in the failed state.
func (r *Report) Failed() bool {
	return r.State != domain.StateVerified
}

// Runner executes scenarios one at a time.
type Runner struct {
	logger      *zap.Logger
	clock       clock.Clock
	supervisor  *supervisor.Supervisor
	launch      supervisor.Launch
	emitter     Emitter
	sessionOpts []session.Option
	onFailure   func(*Report) (string, error)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock used to time runs.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithEmitter sends run events to e.
func WithEmitter(e Emitter) RunnerOption {
	return func(r *Runner) { r.emitter = e }
}

// WithSessionOptions are applied to every controller the runner creates.
func WithSessionOptions(opts ...session.Option) RunnerOption {
	return func(r *Runner) { r.sessionOpts = append(r.sessionOpts, opts...) }
}

// WithFailureReport is called for failed runs before the run_end event is
// emitted. The returned path is recorded on the report.
func WithFailureReport(fn func(*Report) (string, error)) RunnerOption {
	return func(r *Runner) { r.onFailure = fn }
}

// NewRunner creates a Runner. launch is a template: its Port and File are
// filled in per run.
func NewRunner(sup *supervisor.Supervisor, launch supervisor.Launch, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:     zap.NewNop(),
		clock:      clock.New(),
		supervisor: sup,
		launch:     launch,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.supervisor == nil {
		r.supervisor = supervisor.New(supervisor.WithLogger(r.logger.Named("supervisor")))
	}
	return r
}

// Run executes sc once. The report is always returned; the error is
// non-nil when the run failed.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Report, error) {
	runID := uuid.NewString()
	log := r.logger.With(zap.String("run_id", runID), zap.String("scenario", sc.Name()))
	tracker := NewTracker(runID)
	start := r.clock.Now()

	events := &runEvents{runner: r, log: log}
	advance := func(s domain.RunState) {
		events.state(tracker.Transition(s))
	}

	opts := append([]session.Option{}, r.sessionOpts...)
	opts = append(opts,
		session.WithLogger(log.Named("session")),
		session.WithFile(sc.File()),
		session.WithStateHook(advance),
	)
	ctrl := session.New(opts...)
	defer ctrl.Close()

	rep := &Report{RunID: runID, Scenario: sc.Name(), File: sc.File()}

	if err := ctrl.Listen(r.launch.Host, r.launch.Port); err != nil {
		events.start(domain.NewRunStart(runID, sc.Name(), sc.File(), r.launch.Port))
		return r.finish(events, rep, tracker, start, fmt.Errorf("bind listener: %w", err))
	}
	rep.Port = ctrl.Port()
	events.start(domain.NewRunStart(runID, sc.Name(), sc.File(), rep.Port))

	// A scenario error aborts the process instead of waiting for it to
	// notice the missing client.
	procCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	t := &task{ctrl: ctrl, done: make(chan struct{})}
	t.alive.Store(true)
	taskCtx, cancelTask := context.WithCancel(ctx)
	defer cancelTask()
	taskCtx = WithStepFunc(taskCtx, func(s Step) {
		ev := domain.NewStepEvent(runID, s.Index, s.Action, s.Detail)
		ev.ThreadID, ev.FrameID = s.ThreadID, s.FrameID
		r.emit(log, func(e Emitter) error { return e.WriteStep(ev) })
	})
	go t.run(taskCtx, sc, func(err error) {
		log.Debug("scenario failed", zap.Error(err))
		abort(err)
	})

	launch := r.launch
	launch.Port = rep.Port
	launch.File = sc.File()
	res, err := r.supervisor.Run(procCtx, launch, t)

	cancelTask()
	_ = ctrl.Close()
	<-t.done

	var failure *supervisor.Failure
	switch {
	case err == nil:
		advance(domain.StateProcessExited)
		rep.ExitCode = res.ExitCode
		rep.Stdout, rep.Stderr = res.Stdout, res.Stderr
	case errors.As(err, &failure):
		advance(domain.StateProcessExited)
		rep.ExitCode = failure.ExitCode
		rep.Stdout, rep.Stderr = failure.Stdout, failure.Stderr
	}
	rep.Log = ctrl.OperationLog()
	return r.finish(events, rep, tracker, start, err)
}

func (r *Runner) finish(events *runEvents, rep *Report, tracker *Tracker, start time.Time, err error) (*Report, error) {
	log := events.log
	final := domain.StateVerified
	if err != nil {
		final = domain.StateFailed
	}
	events.state(tracker.Transition(final))
	rep.State = tracker.State()
	rep.States = tracker.History()
	rep.Duration = r.clock.Since(start)
	rep.Err = err

	if err != nil && r.onFailure != nil {
		path, werr := r.onFailure(rep)
		if werr != nil {
			log.Warn("failure report not written", zap.Error(werr))
		}
		rep.ReportPath = path
	}

	end := domain.NewRunEnd(rep.RunID, rep.Scenario, rep.State, rep.ExitCode, rep.Duration, err)
	end.Report = rep.ReportPath
	r.emit(log, func(e Emitter) error { return e.WriteRunEnd(end) })
	log.Debug("run finished", zap.String("state", string(rep.State)), zap.Duration("duration", rep.Duration))
	return rep, err
}

// runEvents holds state changes back until run_start has been written so
// that consumers always see run_start first.
type runEvents struct {
	runner  *Runner
	log     *zap.Logger
	mu      sync.Mutex
	started bool
	pending []*domain.StateChange
}

func (e *runEvents) start(ev *domain.RunStart) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runner.emit(e.log, func(em Emitter) error { return em.WriteRunStart(ev) })
	e.started = true
	for _, change := range e.pending {
		e.runner.emit(e.log, func(em Emitter) error { return em.WriteStateChange(change) })
	}
	e.pending = nil
}

func (e *runEvents) state(change *domain.StateChange) {
	if change == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		e.pending = append(e.pending, change)
		return
	}
	e.runner.emit(e.log, func(em Emitter) error { return em.WriteStateChange(change) })
}

func (r *Runner) emit(log *zap.Logger, fn func(Emitter) error) {
	if r.emitter == nil {
		return
	}
	if err := fn(r.emitter); err != nil {
		log.Warn("emit failed", zap.Error(err))
	}
}

// task is the supervisor's companion: it accepts the connection, performs
// the handshake and runs the scenario.
type task struct {
	ctrl     *session.Controller
	alive    atomic.Bool
	finished atomic.Bool
	done     chan struct{}

	mu  sync.Mutex
	err error
}

func (t *task) run(ctx context.Context, sc Scenario, onErr func(error)) {
	defer close(t.done)
	defer t.alive.Store(false)

	err := t.ctrl.Accept(ctx)
	if err == nil {
		err = sc.Run(ctx, t.ctrl)
	}
	if err != nil {
		t.ctrl.Logf("scenario error: %v", err)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		onErr(err)
		return
	}
	t.finished.Store(true)
}

func (t *task) Alive() bool            { return t.alive.Load() }
func (t *task) FinishedOK() bool       { return t.finished.Load() }
func (t *task) OperationLog() []string { return t.ctrl.OperationLog() }

func (t *task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
