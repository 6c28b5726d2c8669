package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/dbgwire/internal/domain"
)

func TestTrackerMovesForward(t *testing.T) {
	tr := NewTracker("run-1")
	require.Equal(t, domain.StateNotStarted, tr.State())

	change := tr.Transition(domain.StateListening)
	require.NotNil(t, change)
	assert.Equal(t, "state", change.Type)
	assert.Equal(t, "run-1", change.RunID)
	assert.Equal(t, "not_started", change.From)
	assert.Equal(t, "listening", change.To)

	require.NotNil(t, tr.Transition(domain.StateConnected))
	require.NotNil(t, tr.Transition(domain.StateHandshaked))
	require.NotNil(t, tr.Transition(domain.StateProcessExited))
	require.NotNil(t, tr.Transition(domain.StateVerified))

	assert.Equal(t, []domain.RunState{
		domain.StateNotStarted,
		domain.StateListening,
		domain.StateConnected,
		domain.StateHandshaked,
		domain.StateProcessExited,
		domain.StateVerified,
	}, tr.History())
}

func TestTrackerIgnoresIllegalTransitions(t *testing.T) {
	tr := NewTracker("run-2")
	require.NotNil(t, tr.Transition(domain.StateHandshaked))

	assert.Nil(t, tr.Transition(domain.StateListening), "backwards")
	assert.Nil(t, tr.Transition(domain.StateHandshaked), "same state")
	assert.Nil(t, tr.Transition(domain.RunState("bogus")), "unknown state")

	require.NotNil(t, tr.Transition(domain.StateFailed))
	assert.Nil(t, tr.Transition(domain.StateVerified), "terminal")
	assert.Equal(t, domain.StateFailed, tr.State())
}

func TestTrackerFailsFromAnyState(t *testing.T) {
	tr := NewTracker("run-3")
	change := tr.Transition(domain.StateFailed)
	require.NotNil(t, change)
	assert.Equal(t, "not_started", change.From)
	assert.True(t, tr.State().Terminal())
}
