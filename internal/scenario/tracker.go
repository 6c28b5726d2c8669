package scenario

import (
	"sync"

	"github.com/vburojevic/dbgwire/internal/domain"
)

// Tracker follows one run through the state machine. Transitions only move
// forward; anything else is ignored.
type Tracker struct {
	mu      sync.Mutex
	runID   string
	state   domain.RunState
	history []domain.RunState
}

// NewTracker creates a tracker in the not_started state.
func NewTracker(runID string) *Tracker {
	return &Tracker{
		runID:   runID,
		state:   domain.StateNotStarted,
		history: []domain.RunState{domain.StateNotStarted},
	}
}

// Transition moves to next and returns the resulting event, or nil when the
// transition is not allowed.
func (t *Tracker) Transition(next domain.RunState) *domain.StateChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	if next.Rank() < 0 || t.state.Terminal() || next.Rank() <= t.state.Rank() {
		return nil
	}
	prev := t.state
	t.state = next
	t.history = append(t.history, next)
	return domain.NewStateChange(t.runID, prev, next)
}

// State returns the current state.
func (t *Tracker) State() domain.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// History returns every state visited, in order.
func (t *Tracker) History() []domain.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.RunState, len(t.history))
	copy(out, t.history)
	return out
}
