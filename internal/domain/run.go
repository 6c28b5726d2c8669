package domain

import "time"

// SchemaVersion is stamped on every emitted event.
const SchemaVersion = 1

// RunState is a step of the scenario state machine:
// not_started -> listening -> connected -> handshaked -> process_exited -> verified | failed
type RunState string

const (
	StateNotStarted    RunState = "not_started"
	StateListening     RunState = "listening"
	StateConnected     RunState = "connected"
	StateHandshaked    RunState = "handshaked"
	StateProcessExited RunState = "process_exited"
	StateVerified      RunState = "verified"
	StateFailed        RunState = "failed"
)

// Rank orders the non-terminal states. Terminal states rank highest.
func (s RunState) Rank() int {
	switch s {
	case StateNotStarted:
		return 0
	case StateListening:
		return 1
	case StateConnected:
		return 2
	case StateHandshaked:
		return 3
	case StateProcessExited:
		return 4
	case StateVerified, StateFailed:
		return 5
	default:
		return -1
	}
}

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateVerified || s == StateFailed
}

// RunStart is emitted when a scenario run begins
type RunStart struct {
	Type          string `json:"type"`          // "run_start"
	SchemaVersion int    `json:"schemaVersion"` // 1
	RunID         string `json:"run_id"`
	Scenario      string `json:"scenario"`
	File          string `json:"file"`
	Port          int    `json:"port"`
	Timestamp     string `json:"timestamp"`
}

// RunEnd is emitted when a scenario run reaches a terminal state
type RunEnd struct {
	Type            string  `json:"type"` // "run_end"
	SchemaVersion   int     `json:"schemaVersion"`
	RunID           string  `json:"run_id"`
	Scenario        string  `json:"scenario"`
	State           string  `json:"state"`
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
	Report          string  `json:"report,omitempty"` // path of the written failure report
}

// StateChange is emitted on each state machine transition
type StateChange struct {
	Type          string `json:"type"` // "state"
	SchemaVersion int    `json:"schemaVersion"`
	RunID         string `json:"run_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Timestamp     string `json:"timestamp"`
}

// NewRunStart creates a new RunStart event
func NewRunStart(runID, scenario, file string, port int) *RunStart {
	return &RunStart{
		Type:          "run_start",
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Scenario:      scenario,
		File:          file,
		Port:          port,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// NewRunEnd creates a new RunEnd event
func NewRunEnd(runID, scenario string, state RunState, exitCode int, d time.Duration, err error) *RunEnd {
	e := &RunEnd{
		Type:            "run_end",
		SchemaVersion:   SchemaVersion,
		RunID:           runID,
		Scenario:        scenario,
		State:           string(state),
		ExitCode:        exitCode,
		DurationSeconds: d.Seconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewStateChange creates a new StateChange event
func NewStateChange(runID string, from, to RunState) *StateChange {
	return &StateChange{
		Type:          "state",
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		From:          string(from),
		To:            string(to),
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}
}
