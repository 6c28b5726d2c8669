package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/vburojevic/dbgwire/internal/output"
	"github.com/vburojevic/dbgwire/internal/script"
)

// CheckCmd validates scripts and lists their steps
type CheckCmd struct {
	Scripts []string `arg:"" name:"script" help:"Scenario script files (YAML)"`
}

// ScriptOutput represents the NDJSON output for a checked script
type ScriptOutput struct {
	Type          string   `json:"type"`
	SchemaVersion int      `json:"schemaVersion"`
	Path          string   `json:"path"`
	Name          string   `json:"name,omitempty"`
	File          string   `json:"file,omitempty"`
	FileExists    bool     `json:"file_exists"`
	Steps         int      `json:"steps"`
	Actions       []string `json:"actions,omitempty"`
	Valid         bool     `json:"valid"`
	Problems      []string `json:"problems,omitempty"`
}

// Run executes the check command
func (c *CheckCmd) Run(globals *Globals) error {
	invalid := 0
	for _, path := range c.Scripts {
		s, err := script.Load(path)
		if err != nil {
			invalid++
		}
		if globals.Format == "ndjson" {
			c.outputNDJSON(globals, path, s, err)
		} else {
			c.outputText(globals, path, s, err)
		}
	}
	if invalid > 0 {
		return reportError(globals, CodeScriptInvalid, fmt.Sprintf("%d of %d scripts are invalid", invalid, len(c.Scripts)))
	}
	return nil
}

func problems(err error) []string {
	var ve *script.ValidationError
	if errors.As(err, &ve) {
		return ve.Problems
	}
	return []string{err.Error()}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (c *CheckCmd) outputNDJSON(globals *Globals, path string, s *script.Script, err error) {
	out := ScriptOutput{
		Type:          "script",
		SchemaVersion: output.SchemaVersion,
		Path:          path,
		Valid:         err == nil,
	}
	if err != nil {
		out.Problems = problems(err)
	} else {
		out.Name = s.Name()
		out.File = s.File()
		out.FileExists = fileExists(s.File())
		out.Steps = len(s.Steps)
		out.Actions = lo.Map(s.Steps, func(st script.Step, _ int) string { return st.Action })
	}
	output.NewNDJSONWriter(globals.Stdout).Write(out)
}

func (c *CheckCmd) outputText(globals *Globals, path string, s *script.Script, err error) {
	if err != nil {
		fmt.Fprintf(globals.Stdout, "%s: INVALID\n", path)
		for _, p := range problems(err) {
			fmt.Fprintf(globals.Stdout, "  %s\n", p)
		}
		return
	}
	rows := lo.Map(s.Steps, func(st script.Step, i int) output.StepRow {
		return output.StepRow{Index: i, Action: st.Action, Detail: st.Describe()}
	})
	title := fmt.Sprintf("%s: %s (%s)", path, s.Name(), s.File())
	if !fileExists(s.File()) {
		title += " [target missing]"
	}
	output.StepTable(globals.Stdout, title, rows)
}
