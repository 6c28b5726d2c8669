package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
	"github.com/vburojevic/dbgwire/internal/scenario"
	"github.com/vburojevic/dbgwire/internal/script"
	"github.com/vburojevic/dbgwire/internal/supervisor"
	"go.uber.org/zap"
)

// RunCmd runs scenario scripts. Flags left empty fall back to the config.
type RunCmd struct {
	Scripts    []string `arg:"" name:"script" type:"existingfile" help:"Scenario script files (YAML)"`
	Command    string   `help:"Command that starts the debugger, space separated (e.g. 'python -u')"`
	Debugger   string   `help:"Debugger entry point passed after the command"`
	Host       string   `help:"Address the debugger connects back to"`
	Port       int      `help:"Listening port (0 picks a free port)"`
	ReportDir  string   `name:"report-dir" type:"path" help:"Write a report file for every failed run"`
	FailFast   bool     `help:"Stop after the first failed scenario"`
	ShowOutput bool     `help:"Echo the debugged process's output to stderr"`
}

// Run executes the run command
func (c *RunCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, globals)
}

func (c *RunCmd) run(ctx context.Context, globals *Globals) error {
	cfg := globals.Config
	port := lo.Ternary(c.Port != 0, c.Port, cfg.Session.Port)
	if err := validateFlags(globals, port); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return reportError(globals, CodeInvalidConfig, err.Error(), "run 'dbgwire config show' to inspect the effective configuration")
	}

	scripts, err := loadScripts(c.Scripts)
	if err != nil {
		return reportError(globals, CodeScriptInvalid, err.Error(), "run 'dbgwire check' for details")
	}

	command := cfg.Launch.Command
	if c.Command != "" {
		command = strings.Fields(c.Command)
	}
	launch := supervisor.Launch{
		Command:  command,
		Debugger: lo.CoalesceOrEmpty(c.Debugger, cfg.Launch.Debugger),
		Flags:    cfg.Launch.Flags,
		Host:     lo.CoalesceOrEmpty(c.Host, cfg.Launch.Host),
		Port:     port,
		Dir:      cfg.Launch.Dir,
	}

	logger := newLogger(globals)
	defer logger.Sync()

	supOpts := []supervisor.Option{
		supervisor.WithLogger(logger.Named("supervisor")),
		supervisor.WithPolicy(processPolicy(cfg)),
	}
	if c.ShowOutput || cfg.Process.ShowOutput {
		supOpts = append(supOpts, supervisor.WithEcho(globals.Stderr))
	}
	reports := newReportWriter(lo.CoalesceOrEmpty(c.ReportDir, cfg.ReportDir))
	runner := scenario.NewRunner(supervisor.New(supOpts...), launch,
		scenario.WithLogger(logger),
		scenario.WithEmitter(newEmitter(globals)),
		scenario.WithSessionOptions(sessionOptions(cfg)...),
		scenario.WithFailureReport(reports.Write),
	)

	styled := stderrIsTerminal(globals)
	failed := 0
	ran := 0
	for _, s := range scripts {
		if ctx.Err() != nil {
			break
		}
		ran++
		rep, err := runner.Run(ctx, s)
		if err == nil {
			continue
		}
		failed++
		logger.Debug("scenario failed", zap.String("scenario", rep.Scenario), zap.Error(err))
		if globals.Format != "ndjson" {
			if rerr := renderFailure(globals.Stderr, rep, styled); rerr != nil {
				logger.Warn("render failure", zap.Error(rerr))
			}
		}
		if c.FailFast {
			break
		}
	}

	if ctx.Err() != nil {
		return reportError(globals, CodeInterrupted, fmt.Sprintf("interrupted after %d of %d scenarios", ran, len(scripts)))
	}
	if failed > 0 {
		hint := "rerun with --verbose for the full operation log"
		if reports.pathBuilder != nil {
			hint = "see the report files in the report directory"
		}
		return reportError(globals, CodeRunFailed, fmt.Sprintf("%d of %d scenarios failed", failed, ran), hint)
	}
	return nil
}

func loadScripts(paths []string) ([]*script.Script, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scripts given")
	}
	scripts := make([]*script.Script, 0, len(paths))
	for _, p := range paths {
		s, err := script.Load(p)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

func stderrIsTerminal(globals *Globals) bool {
	f, ok := globals.Stderr.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
