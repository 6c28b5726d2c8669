package script

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/vburojevic/dbgwire/internal/match"
	"github.com/vburojevic/dbgwire/internal/session"
	"github.com/vburojevic/dbgwire/internal/wire"
)

// Default scopes used when a step leaves scope empty.
const (
	defaultEvalScope   = "LOCAL"
	defaultCustomScope = "EXPRESSION"
	defaultStyle       = "EXECFILE"
)

// state carries ids between steps.
type state struct {
	ctrl        *session.Controller
	thread      string
	frame       string
	breakpoints map[string]int
	lastBreak   int
}

func (s *state) threadFor(st Step) (string, error) {
	if st.Thread != "" {
		return st.Thread, nil
	}
	if s.thread == "" {
		return "", errors.New("no thread captured yet; add a wait_for_new_thread or wait_for_breakpoint_hit step first")
	}
	return s.thread, nil
}

func (s *state) frameFor(st Step) (string, string, error) {
	thread, err := s.threadFor(st)
	if err != nil {
		return "", "", err
	}
	if st.Frame != "" {
		return thread, st.Frame, nil
	}
	if s.frame == "" {
		return "", "", errors.New("no frame captured yet; add a wait_for_breakpoint_hit step first")
	}
	return thread, s.frame, nil
}

type action struct {
	validate func(Step) error
	run      func(ctx context.Context, s *state, st Step) error
}

func threadAction(fn func(*session.Controller, context.Context, string) error) action {
	return action{run: func(ctx context.Context, s *state, st Step) error {
		thread, err := s.threadFor(st)
		if err != nil {
			return err
		}
		return fn(s.ctrl, ctx, thread)
	}}
}

func expectOne(st Step) error {
	return need("expect", len(st.Expect) == 1 && st.Expect[0] != "")
}

func expectSome(st Step) error {
	return need("expect", len(st.Expect) > 0)
}

var actions = map[string]action{
	"add_breakpoint": {
		validate: func(st Step) error { return need("line", st.Line > 0) },
		run: func(ctx context.Context, s *state, st Step) error {
			id, err := s.ctrl.AddBreakpoint(ctx, st.Line, st.Func)
			if err != nil {
				return err
			}
			s.lastBreak = id
			if st.As != "" {
				s.breakpoints[st.As] = id
			}
			return nil
		},
	},
	"remove_breakpoint": {
		run: func(ctx context.Context, s *state, st Step) error {
			id := s.lastBreak
			if st.Breakpoint != "" {
				id = s.breakpoints[st.Breakpoint]
			}
			if id == 0 {
				return errors.New("no breakpoint to remove")
			}
			return s.ctrl.RemoveBreakpoint(ctx, id)
		},
	},
	"make_initial_run": {
		run: func(ctx context.Context, s *state, _ Step) error {
			return s.ctrl.MakeInitialRun(ctx)
		},
	},
	"wait_for_new_thread": {
		run: func(ctx context.Context, s *state, _ Step) error {
			thread, err := s.ctrl.WaitForNewThread(ctx)
			if err != nil {
				return err
			}
			s.thread = thread
			return nil
		},
	},
	"wait_for_breakpoint_hit": {
		validate: func(st Step) error {
			if _, ok := wire.ParseStopReason(st.Reason); !ok {
				return fmt.Errorf("unknown stop reason %q", st.Reason)
			}
			return nil
		},
		run: func(ctx context.Context, s *state, st Step) error {
			reason, ok := wire.ParseStopReason(st.Reason)
			if !ok {
				return fmt.Errorf("unknown stop reason %q", st.Reason)
			}
			ev, err := s.ctrl.WaitForBreakpointHit(ctx, reason)
			if err != nil {
				return err
			}
			s.thread, s.frame = ev.ThreadID, ev.FrameID
			if st.Line > 0 && (!ev.LineKnown || ev.Line != st.Line) {
				return fmt.Errorf("expected to stop at line %d, stopped at line %d", st.Line, ev.Line)
			}
			return nil
		},
	},
	"step_over":      threadAction((*session.Controller).StepOver),
	"step_in":        threadAction((*session.Controller).StepIn),
	"step_return":    threadAction((*session.Controller).StepReturn),
	"suspend_thread": threadAction((*session.Controller).SuspendThread),
	"run_thread":     threadAction((*session.Controller).RunThread),
	"kill_thread":    threadAction((*session.Controller).KillThread),
	"get_frame": {
		run: func(ctx context.Context, s *state, st Step) error {
			thread, frame, err := s.frameFor(st)
			if err != nil {
				return err
			}
			return s.ctrl.GetFrame(ctx, thread, frame)
		},
	},
	"get_variable": {
		validate: func(st Step) error { return need("attrs", st.Attrs != "") },
		run: func(ctx context.Context, s *state, st Step) error {
			thread, frame, err := s.frameFor(st)
			if err != nil {
				return err
			}
			return s.ctrl.GetVariable(ctx, thread, frame, st.Attrs)
		},
	},
	"change_variable": {
		validate: func(st Step) error { return need("name", st.Name != "") },
		run: func(ctx context.Context, s *state, st Step) error {
			thread, frame, err := s.frameFor(st)
			if err != nil {
				return err
			}
			return s.ctrl.ChangeVariable(ctx, thread, frame, st.Name, st.Value)
		},
	},
	"evaluate_expression": {
		validate: func(st Step) error { return need("expression", st.Expression != "") },
		run: func(ctx context.Context, s *state, st Step) error {
			thread, frame, err := s.frameFor(st)
			if err != nil {
				return err
			}
			loc := session.Locator(thread, frame, lo.CoalesceOrEmpty(st.Scope, defaultEvalScope))
			return s.ctrl.EvaluateExpression(ctx, loc, st.Expression)
		},
	},
	"evaluate_console_expression": {
		validate: func(st Step) error { return need("expression", st.Expression != "") },
		run: func(ctx context.Context, s *state, st Step) error {
			thread, frame, err := s.frameFor(st)
			if err != nil {
				return err
			}
			loc := session.Locator(thread, frame, lo.CoalesceOrEmpty(st.Scope, "EVALUATE"), st.Expression)
			return s.ctrl.EvaluateConsoleExpression(ctx, loc)
		},
	},
	"run_custom_operation": {
		validate: func(st Step) error {
			return errors.Join(need("code", st.Code != ""), need("function", st.Function != ""))
		},
		run: func(ctx context.Context, s *state, st Step) error {
			thread, frame, err := s.frameFor(st)
			if err != nil {
				return err
			}
			loc := session.Locator(thread, frame, lo.CoalesceOrEmpty(st.Scope, defaultCustomScope), lo.Compact([]string{st.Attrs})...)
			return s.ctrl.RunCustomOperation(ctx, loc, lo.CoalesceOrEmpty(st.Style, defaultStyle), st.Code, st.Function)
		},
	},
	"enable_dont_trace": {
		validate: func(st Step) error { return need("enable", st.Enable != nil) },
		run: func(ctx context.Context, s *state, st Step) error {
			return s.ctrl.EnableDontTrace(ctx, *st.Enable)
		},
	},
	"set_property_trace": {
		run: func(ctx context.Context, s *state, st Step) error {
			return s.ctrl.SetPropertyTrace(ctx, session.PropertyTrace{
				Disable: st.Disable,
				Getter:  st.Getter,
				Setter:  st.Setter,
				Deleter: st.Deleter,
			})
		},
	},
	"wait_for_evaluation": {
		validate: expectSome,
		run: func(ctx context.Context, s *state, st Step) error {
			return s.ctrl.WaitForEvaluation(ctx, st.Expect...)
		},
	},
	"wait_for_var": {
		validate: expectSome,
		run: func(ctx context.Context, s *state, st Step) error {
			return s.ctrl.WaitForVar(ctx, st.Expect...)
		},
	},
	"wait_for_vars": {
		validate: expectOne,
		run: func(ctx context.Context, s *state, st Step) error {
			return s.ctrl.WaitForVars(ctx, st.Expect[0])
		},
	},
	"wait_for_multiple_vars": {
		validate: expectSome,
		run: func(ctx context.Context, s *state, st Step) error {
			return s.ctrl.WaitForMultipleVars(ctx, st.Expect...)
		},
	},
	"wait_for": {
		validate: func(st Step) error {
			if err := expectSome(st); err != nil {
				return err
			}
			_, err := match.ParseAll(st.Expect)
			return err
		},
		run: func(ctx context.Context, s *state, st Step) error {
			ms, err := match.ParseAll(st.Expect)
			if err != nil {
				return err
			}
			_, err = s.ctrl.WaitFor(ctx, match.AllOf(ms...))
			return err
		},
	},
	"wait_for_custom_operation": {
		validate: expectOne,
		run: func(ctx context.Context, s *state, st Step) error {
			return s.ctrl.WaitForCustomOperation(ctx, st.Expect[0])
		},
	},
}

// ActionNames lists the supported actions, sorted.
func ActionNames() []string {
	names := lo.Keys(actions)
	sort.Strings(names)
	return names
}
