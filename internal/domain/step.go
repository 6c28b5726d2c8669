package domain

// StepEvent is an optional verbose event describing one scripted step.
type StepEvent struct {
	Type          string `json:"type"` // step
	SchemaVersion int    `json:"schemaVersion"`
	RunID         string `json:"run_id,omitempty"`
	Index         int    `json:"index"`
	Action        string `json:"action"`
	Detail        string `json:"detail,omitempty"`
	ThreadID      string `json:"thread_id,omitempty"`
	FrameID       string `json:"frame_id,omitempty"`
}

// NewStepEvent creates a StepEvent
func NewStepEvent(runID string, index int, action, detail string) *StepEvent {
	return &StepEvent{
		Type:          "step",
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Index:         index,
		Action:        action,
		Detail:        detail,
	}
}
