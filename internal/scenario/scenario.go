// Package scenario runs one debugger test end to end: it binds the
// listener, drives the session from a companion task and lets the
// supervisor launch and verify the debugged process.
package scenario

import (
	"context"

	"github.com/vburojevic/dbgwire/internal/domain"
	"github.com/vburojevic/dbgwire/internal/session"
)

// Scenario is the test logic run against a connected session.
type Scenario interface {
	// Name identifies the scenario in events and reports.
	Name() string
	// File is the program the debugger runs.
	File() string
	// Run drives the session. It is called after the handshake.
	Run(ctx context.Context, c *session.Controller) error
}

// Emitter receives run events. Implementations must be safe for
// concurrent use.
type Emitter interface {
	WriteRunStart(*domain.RunStart) error
	WriteStateChange(*domain.StateChange) error
	WriteStep(*domain.StepEvent) error
	WriteRunEnd(*domain.RunEnd) error
}

// Step describes one unit of scenario progress.
type Step struct {
	Index    int
	Action   string
	Detail   string
	ThreadID string
	FrameID  string
}

type stepKey struct{}

// WithStepFunc returns a context whose ReportStep calls go to fn.
func WithStepFunc(ctx context.Context, fn func(Step)) context.Context {
	return context.WithValue(ctx, stepKey{}, fn)
}

// ReportStep forwards s to the step function carried by ctx, if any.
func ReportStep(ctx context.Context, s Step) {
	if fn, ok := ctx.Value(stepKey{}).(func(Step)); ok && fn != nil {
		fn(s)
	}
}

// Func adapts a function to a Scenario.
type Func struct {
	ScenarioName string
	Target       string
	Fn           func(ctx context.Context, c *session.Controller) error
}

func (f Func) Name() string { return f.ScenarioName }
func (f Func) File() string { return f.Target }

func (f Func) Run(ctx context.Context, c *session.Controller) error {
	return f.Fn(ctx, c)
}
