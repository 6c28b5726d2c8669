package supervisor

import (
	"errors"
	"path/filepath"
	"strconv"
)

// DefaultFlags put the debugger into socket-read recording mode.
var DefaultFlags = []string{"--DEBUG_RECORD_SOCKET_READS", "--qt-support"}

// Launch describes how to start the debugged process.
type Launch struct {
	// Command is the base command, e.g. ["python", "-u"].
	Command []string
	// Debugger is the debugger entry point passed after Command.
	Debugger string
	// Flags follow the entry point. Nil means DefaultFlags.
	Flags []string
	// Host and Port are where the debugger connects back to.
	Host string
	Port int
	// File is the program to debug.
	File string
	// Dir is the working directory. Empty means the debugger's directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// Args returns the full command line.
func (l Launch) Args() []string {
	args := append([]string{}, l.Command...)
	if l.Debugger != "" {
		args = append(args, l.Debugger)
	}
	flags := l.Flags
	if flags == nil {
		flags = DefaultFlags
	}
	args = append(args, flags...)
	return append(args,
		"--client", l.Host,
		"--port", strconv.Itoa(l.Port),
		"--file", l.File,
	)
}

// WorkDir is the directory the process starts in.
func (l Launch) WorkDir() string {
	if l.Dir != "" {
		return l.Dir
	}
	if l.Debugger != "" {
		return filepath.Dir(l.Debugger)
	}
	return ""
}

// Validate checks that the launch can be attempted.
func (l Launch) Validate() error {
	if len(l.Command) == 0 || l.Command[0] == "" {
		return errors.New("launch: command is required")
	}
	if l.Port <= 0 {
		return errors.New("launch: port is required")
	}
	if l.File == "" {
		return errors.New("launch: file is required")
	}
	return nil
}
