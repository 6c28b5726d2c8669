package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vburojevic/dbgwire/internal/config"
	"github.com/vburojevic/dbgwire/internal/output"
)

// ConfigCmd groups the configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file is used"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a config file with default values"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// ConfigOutput represents the NDJSON output for the effective configuration
type ConfigOutput struct {
	Type          string         `json:"type"`
	SchemaVersion int            `json:"schemaVersion"`
	Path          string         `json:"path"`
	Config        *config.Config `json:"config"`
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if globals.Format == "ndjson" {
		return json.NewEncoder(globals.Stdout).Encode(ConfigOutput{
			Type:          "config",
			SchemaVersion: output.SchemaVersion,
			Path:          config.ConfigFile(),
			Config:        cfg,
		})
	}

	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(globals.Stdout, "  %s\n", line)
	}
	return nil
}

// ConfigPathCmd prints the config file path
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return json.NewEncoder(globals.Stdout).Encode(map[string]any{
			"type":          "config_path",
			"schemaVersion": output.SchemaVersion,
			"path":          path,
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found (searched dbgwire.yaml, .dbgwire.yaml, .dbgwire.yml)")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a config file with the defaults
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	data, err := config.Default().YAML()
	if err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout, "# dbgwire configuration file")
	fmt.Fprintln(globals.Stdout, "# Save as dbgwire.yaml in the project directory or ~/.dbgwire.yaml")
	fmt.Fprintln(globals.Stdout, "# Durations use Go syntax (200ms, 1s). Environment variables DBGWIRE_* override.")
	_, err = globals.Stdout.Write(data)
	return err
}
