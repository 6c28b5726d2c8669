package script

import (
	"context"
	"fmt"

	"github.com/vburojevic/dbgwire/internal/scenario"
	"github.com/vburojevic/dbgwire/internal/session"
)

// StepError wraps the failure of one step.
type StepError struct {
	Index  int
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Action, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Run executes the steps in order against c. The first failing step stops
// the script.
func (s *Script) Run(ctx context.Context, c *session.Controller) error {
	st := &state{ctrl: c, breakpoints: map[string]int{}}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		act, ok := actions[step.Action]
		if !ok {
			return &StepError{Index: i, Action: step.Action, Err: fmt.Errorf("unknown action")}
		}
		c.Logf("step %d: %s", i+1, step.Action)
		if err := act.run(ctx, st, step); err != nil {
			return &StepError{Index: i, Action: step.Action, Err: err}
		}
		scenario.ReportStep(ctx, scenario.Step{
			Index:    i,
			Action:   step.Action,
			Detail:   step.Describe(),
			ThreadID: st.thread,
			FrameID:  st.frame,
		})
	}
	return nil
}

var _ scenario.Scenario = (*Script)(nil)
