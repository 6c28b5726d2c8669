package cli

import (
	"github.com/vburojevic/dbgwire/internal/domain"
	"github.com/vburojevic/dbgwire/internal/output"
	"github.com/vburojevic/dbgwire/internal/scenario"
)

// quietEmitter drops state and step events.
type quietEmitter struct {
	scenario.Emitter
}

func (quietEmitter) WriteStateChange(*domain.StateChange) error { return nil }
func (quietEmitter) WriteStep(*domain.StepEvent) error          { return nil }

// verboseOnlySteps drops step events unless verbose.
type verboseOnlySteps struct {
	scenario.Emitter
}

func (verboseOnlySteps) WriteStep(*domain.StepEvent) error { return nil }

func newEmitter(globals *Globals) scenario.Emitter {
	if globals.Format != "ndjson" {
		return output.NewTextWriter(globals.Stdout, globals.Verbose)
	}
	var e scenario.Emitter = output.NewNDJSONWriter(globals.Stdout)
	switch {
	case globals.Quiet:
		return quietEmitter{e}
	case !globals.Verbose:
		return verboseOnlySteps{e}
	}
	return e
}
