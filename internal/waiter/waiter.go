// Package waiter implements bounded polling for expected responses.
//
// Budgets are counted in ticks of a fixed interval, not wall-clock
// deadlines. A wait also wakes up when a new record is published, so a
// match resolves as soon as it arrives, but only ticks consume the budget.
package waiter

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/dbgwire/internal/match"
)

// Policy is a fixed retry budget.
type Policy struct {
	Attempts int
	Interval time.Duration
}

// Budget is the total time the policy may wait.
func (p Policy) Budget() time.Duration {
	return time.Duration(p.Attempts) * p.Interval
}

// DefaultPolicy is used for most response waits.
func DefaultPolicy() Policy {
	return Policy{Attempts: 10, Interval: time.Second}
}

// ThreadPolicy is used while waiting for a thread to be created.
func ThreadPolicy() Policy {
	return Policy{Attempts: 15, Interval: time.Second}
}

// AckPolicy is the fine-grained poll after each write.
func AckPolicy() Policy {
	return Policy{Attempts: 10, Interval: 100 * time.Millisecond}
}

// DefaultSettle is how long a write sleeps before polling for a change.
const DefaultSettle = 200 * time.Millisecond

// Source exposes the last published record.
type Source interface {
	Snapshot() (string, uint64)
	Updated() <-chan struct{}
}

// TimeoutError reports an expectation that never matched.
type TimeoutError struct {
	What     string
	Expected string
	Attempts int
	Waited   time.Duration
	Last     string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("after %g seconds (%d attempts), %s (expected %s). Last found:\n%s",
		e.Waited.Seconds(), e.Attempts, e.What, e.Expected, e.Last)
}

// Waiter polls a Source on a clock.
type Waiter struct {
	clock clock.Clock
}

// New creates a waiter. A nil clock means the real clock.
func New(c clock.Clock) *Waiter {
	if c == nil {
		c = clock.New()
	}
	return &Waiter{clock: c}
}

// Clock returns the clock the waiter sleeps on.
func (w *Waiter) Clock() clock.Clock {
	return w.clock
}

// Until returns the first record accepted by m. what describes the
// expectation for the timeout message.
func (w *Waiter) Until(ctx context.Context, src Source, m match.Matcher, p Policy, what string) (string, error) {
	if p.Interval <= 0 {
		p.Interval = time.Millisecond
	}
	ticker := w.clock.Ticker(p.Interval)
	defer ticker.Stop()

	ticks := 0
	for {
		// Take the notification channel before reading, so a publication
		// between the two is not lost.
		updated := src.Updated()
		last, _ := src.Snapshot()
		if m.Match(last) {
			return last, nil
		}
		if ticks >= p.Attempts {
			return "", &TimeoutError{
				What:     what,
				Expected: m.String(),
				Attempts: ticks,
				Waited:   time.Duration(ticks) * p.Interval,
				Last:     last,
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-updated:
		case <-ticker.C:
			ticks++
		}
	}
}

// Changed waits settle, then polls until the source generation moves past
// since or the budget runs out. Exhausting the budget is not an error: a
// write is acknowledged by waiting for a specific response afterwards.
func (w *Waiter) Changed(ctx context.Context, src Source, since uint64, settle time.Duration, p Policy) (bool, error) {
	if err := w.Sleep(ctx, settle); err != nil {
		return false, err
	}
	for i := 0; i < p.Attempts; i++ {
		if _, gen := src.Snapshot(); gen != since {
			return true, nil
		}
		if err := w.Sleep(ctx, p.Interval); err != nil {
			return false, err
		}
	}
	_, gen := src.Snapshot()
	return gen != since, nil
}

// Sleep blocks for d on the waiter's clock, or until ctx is done.
func (w *Waiter) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := w.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
