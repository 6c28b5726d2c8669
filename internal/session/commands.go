package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/vburojevic/dbgwire/internal/wire"
)

// breakpointType is the only breakpoint kind the harness sets.
const breakpointType = "python-line"

// frameScope addresses variables of a frame.
const frameScope = "FRAME"

// WriteVersion sends the version handshake: version, IDE OS and "ID".
func (c *Controller) WriteVersion(ctx context.Context) error {
	return c.Send(ctx, wire.CmdVersion, c.version, c.osTag, "ID")
}

// MakeInitialRun lets the debugged program start running.
func (c *Controller) MakeInitialRun(ctx context.Context) error {
	if err := c.Send(ctx, wire.CmdRun, ""); err != nil {
		return err
	}
	c.log.Add("write_make_initial_run")
	return nil
}

// AddBreakpoint sets a line breakpoint in the debugged file and returns its
// id. line starts at 1.
func (c *Controller) AddBreakpoint(ctx context.Context, line int, fn string) (int, error) {
	return c.AddBreakpointIn(ctx, c.file, line, fn)
}

// AddBreakpointIn sets a line breakpoint in file.
func (c *Controller) AddBreakpointIn(ctx context.Context, file string, line int, fn string) (int, error) {
	id := c.NextBreakpointID()
	err := c.Send(ctx, wire.CmdSetBreakpoint,
		strconv.Itoa(id), breakpointType, file, strconv.Itoa(line), fn, "None", "None")
	if err != nil {
		return 0, err
	}
	c.log.Addf("write_add_breakpoint: %d line: %d func: %s", id, line, fn)
	return id, nil
}

// RemoveBreakpoint removes a breakpoint from the debugged file.
func (c *Controller) RemoveBreakpoint(ctx context.Context, id int) error {
	return c.RemoveBreakpointIn(ctx, c.file, id)
}

// RemoveBreakpointIn removes a breakpoint from file.
func (c *Controller) RemoveBreakpointIn(ctx context.Context, file string, id int) error {
	return c.Send(ctx, wire.CmdRemoveBreakpoint, breakpointType, file, strconv.Itoa(id))
}

// ChangeVariable assigns value to name in the given frame.
func (c *Controller) ChangeVariable(ctx context.Context, threadID, frameID, name, value string) error {
	return c.Send(ctx, wire.CmdChangeVariable, threadID, frameID, frameScope, name, value)
}

// GetFrame requests the variables of a frame.
func (c *Controller) GetFrame(ctx context.Context, threadID, frameID string) error {
	if err := c.Send(ctx, wire.CmdGetFrame, threadID, frameID, frameScope); err != nil {
		return err
	}
	c.log.Add("write_get_frame")
	return nil
}

// GetVariable requests the children of a variable, addressed by
// tab-separated attribute path.
func (c *Controller) GetVariable(ctx context.Context, threadID, frameID, attrs string) error {
	return c.Send(ctx, wire.CmdGetVariable, threadID, frameID, frameScope, attrs)
}

// StepOver steps over the current line of a suspended thread.
func (c *Controller) StepOver(ctx context.Context, threadID string) error {
	return c.Send(ctx, wire.CmdStepOver, threadID)
}

// StepIn steps into the call on the current line.
func (c *Controller) StepIn(ctx context.Context, threadID string) error {
	return c.Send(ctx, wire.CmdStepInto, threadID)
}

// StepReturn runs until the current function returns.
func (c *Controller) StepReturn(ctx context.Context, threadID string) error {
	return c.Send(ctx, wire.CmdStepReturn, threadID)
}

// SuspendThread suspends a running thread.
func (c *Controller) SuspendThread(ctx context.Context, threadID string) error {
	return c.Send(ctx, wire.CmdSuspendThread, threadID)
}

// RunThread resumes a suspended thread.
func (c *Controller) RunThread(ctx context.Context, threadID string) error {
	c.log.Add("write_run_thread")
	return c.Send(ctx, wire.CmdRunThread, threadID)
}

// KillThread kills a thread.
func (c *Controller) KillThread(ctx context.Context, threadID string) error {
	return c.Send(ctx, wire.CmdKillThread, threadID)
}

// EvaluateConsoleExpression evaluates in the debug console. locator holds
// the tab-separated thread, frame and console expression.
func (c *Controller) EvaluateConsoleExpression(ctx context.Context, locator string) error {
	return c.Send(ctx, wire.CmdEvaluateConsoleExpression, locator)
}

// RunCustomOperation runs operationFn over the object found at locator.
// style and locator share one field joined by "||" because locator itself
// contains tabs.
func (c *Controller) RunCustomOperation(ctx context.Context, locator, style, codeOrFile, operationFn string) error {
	return c.Send(ctx, wire.CmdRunCustomOperation,
		locator+wire.SubFieldSeparator+style, codeOrFile, operationFn)
}

// EvaluateExpression evaluates expression in the frame found at locator.
func (c *Controller) EvaluateExpression(ctx context.Context, locator, expression string) error {
	return c.Send(ctx, wire.CmdEvaluateExpression, locator, expression, "1")
}

// EnableDontTrace toggles the debugger's "don't trace" support.
func (c *Controller) EnableDontTrace(ctx context.Context, enable bool) error {
	return c.Send(ctx, wire.CmdEnableDontTrace, strconv.FormatBool(enable))
}

// PropertyTrace selects which property accessors the debugger skips.
type PropertyTrace struct {
	Disable bool
	Getter  bool
	Setter  bool
	Deleter bool
}

func (p PropertyTrace) String() string {
	return strings.Join([]string{
		strconv.FormatBool(p.Disable),
		strconv.FormatBool(p.Getter),
		strconv.FormatBool(p.Setter),
		strconv.FormatBool(p.Deleter),
	}, ";")
}

// SetPropertyTrace configures property tracing.
func (c *Controller) SetPropertyTrace(ctx context.Context, p PropertyTrace) error {
	return c.Send(ctx, wire.CmdSetPropertyTrace, p.String())
}

// Locator builds the tab-separated address of a frame scope, optionally
// followed by an attribute path.
func Locator(threadID, frameID, scope string, attrs ...string) string {
	parts := append([]string{threadID, frameID, scope}, attrs...)
	return strings.Join(parts, wire.FieldSeparator)
}
