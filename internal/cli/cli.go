// Package cli implements the dbgwire commands.
package cli

import (
	"io"
	"os"

	"github.com/vburojevic/dbgwire/internal/config"
)

// CLI is the root command tree.
type CLI struct {
	Format  string `short:"f" enum:"ndjson,text" default:"${config_format}" help:"Output format (ndjson or text)"`
	Quiet   bool   `short:"q" help:"Only emit run_start, run_end and errors"`
	Verbose bool   `short:"v" help:"Debug logging to stderr and per-step events"`

	Run     RunCmd     `cmd:"" help:"Run scenario scripts against the debugger"`
	Check   CheckCmd   `cmd:"" help:"Validate scenario scripts without running them"`
	Config  ConfigCmd  `cmd:"" help:"Show or generate configuration"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// Globals is passed to every command's Run.
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
}

// NewGlobalsWithConfig merges parsed flags with config values. Booleans
// enabled in either place stay enabled.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	format := c.Format
	if format == "" {
		format = cfg.Format
	}
	return &Globals{
		Format:  format,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
}
