package session

import (
	"context"
	"fmt"

	"github.com/vburojevic/dbgwire/internal/match"
	"github.com/vburojevic/dbgwire/internal/waiter"
	"github.com/vburojevic/dbgwire/internal/wire"
)

// WaitForNewThread waits for a user thread to be announced and returns its id.
func (c *Controller) WaitForNewThread(ctx context.Context) (string, error) {
	m := match.Func("new thread", wire.IsThreadCreated)
	line, err := c.waitLine(ctx, m, c.waits.Thread, "a thread was not created")
	if err != nil {
		return "", err
	}
	return wire.ParseThreadCreated(line)
}

// WaitForBreakpointHit waits for a suspend notification with reason and
// returns the thread id, frame id and line it carries.
func (c *Controller) WaitForBreakpointHit(ctx context.Context, reason wire.StopReason) (wire.StopEvent, error) {
	c.log.Add("Start: wait_for_breakpoint_hit")
	what := fmt.Sprintf("a break with reason: %s was not hit", reason)
	line, err := c.waitLine(ctx, match.Contains(reason.Fragment()), c.waits.Response, what)
	if err != nil {
		return wire.StopEvent{}, err
	}
	ev, err := wire.ParseStopEvent(line)
	if err != nil {
		return wire.StopEvent{}, err
	}
	c.log.Add("End: wait_for_breakpoint_hit")
	return ev, nil
}

// waitLine waits for a chunk holding a line accepted by m and returns that
// line only. Fixed token offsets are only meaningful within one record.
func (c *Controller) waitLine(ctx context.Context, m match.Matcher, p waiter.Policy, what string) (string, error) {
	rec, err := c.Wait(ctx, match.AnyLine(m), p, what)
	if err != nil {
		return "", err
	}
	line, _ := match.Line(rec, m)
	return line, nil
}

// WaitForCustomOperation waits for a custom operation result. The result
// arrives double-encoded, so expected is encoded the same way first.
func (c *Controller) WaitForCustomOperation(ctx context.Context, expected string) error {
	_, err := c.Wait(ctx, match.Contains(wire.DoubleEncode(expected)), c.waits.Response,
		"the custom operation was not received")
	return err
}

// WaitForEvaluation waits until any of expected appears in the raw or
// percent-decoded last record.
func (c *Controller) WaitForEvaluation(ctx context.Context, expected ...string) error {
	return c.waitAnyDecoded(ctx, expected, "the expected evaluation was not found")
}

// WaitForVar waits until any of expected appears in the raw or
// percent-decoded last record.
func (c *Controller) WaitForVar(ctx context.Context, expected ...string) error {
	return c.waitAnyDecoded(ctx, expected, "the var was not found")
}

func (c *Controller) waitAnyDecoded(ctx context.Context, expected []string, what string) error {
	if len(expected) == 0 {
		return fmt.Errorf("session: no expected values")
	}
	m := match.RawOrDecoded(match.AnyOf(match.Strings(expected...)...))
	_, err := c.Wait(ctx, m, c.waits.Response, what)
	return err
}

// WaitForVars waits until expected appears verbatim in the last record.
func (c *Controller) WaitForVars(ctx context.Context, expected string) error {
	_, err := c.Wait(ctx, match.Contains(expected), c.waits.Response, "the vars were not found")
	return err
}

// WaitForMultipleVars waits until every expected value appears verbatim in
// the same record.
func (c *Controller) WaitForMultipleVars(ctx context.Context, expected ...string) error {
	if len(expected) == 0 {
		return fmt.Errorf("session: no expected values")
	}
	_, err := c.Wait(ctx, match.AllOf(match.Strings(expected...)...), c.waits.Response, "the vars were not found")
	return err
}

// WaitFor waits on m with the response budget.
func (c *Controller) WaitFor(ctx context.Context, m match.Matcher) (string, error) {
	return c.Wait(ctx, m, c.waits.Response, "the expected record was not found")
}
