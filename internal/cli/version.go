package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/vburojevic/dbgwire/internal/output"
)

// Set at build time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
)

// VersionCmd shows build information
type VersionCmd struct{}

// VersionOutput represents the NDJSON output for version information
type VersionOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return c.outputNDJSON(globals)
	}
	return c.outputText(globals)
}

func (c *VersionCmd) outputNDJSON(globals *Globals) error {
	out := VersionOutput{
		Type:          "version",
		SchemaVersion: output.SchemaVersion,
		Version:       Version,
		Commit:        Commit,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
	}

	encoder := json.NewEncoder(globals.Stdout)
	return encoder.Encode(out)
}

func (c *VersionCmd) outputText(globals *Globals) error {
	fmt.Fprintf(globals.Stdout, "dbgwire %s (%s)\n", Version, Commit)
	fmt.Fprintf(globals.Stdout, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
