package cli

import (
	"errors"
	"fmt"

	"github.com/vburojevic/dbgwire/internal/output"
)

// ErrorCode classifies a command failure in ndjson error objects and in the
// process exit status.
type ErrorCode string

const (
	CodeInvalidFlags  ErrorCode = "INVALID_FLAGS"
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	CodeScriptInvalid ErrorCode = "SCRIPT_INVALID"
	CodeRunFailed     ErrorCode = "RUN_FAILED"
	CodeInterrupted   ErrorCode = "INTERRUPTED"
)

// ExitStatus is the process exit status for the code. Scenario failures
// exit 1, unusable input exits 2 and interruption follows the shell's
// 128+SIGINT convention.
func (c ErrorCode) ExitStatus() int {
	switch c {
	case CodeInvalidFlags, CodeInvalidConfig, CodeScriptInvalid:
		return 2
	case CodeInterrupted:
		return 130
	default:
		return 1
	}
}

// CommandError is returned by commands after the failure was reported.
type CommandError struct {
	Code    ErrorCode
	Message string
	Hint    string
}

func (e *CommandError) Error() string {
	return e.Message
}

// ExitStatus maps err to a process exit status: 0 for nil, the code's
// status for a *CommandError and 1 otherwise.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code.ExitStatus()
	}
	return 1
}

// reportError writes the failure once, as an ndjson error object or as a
// line on stderr, and returns it as a *CommandError.
func reportError(globals *Globals, code ErrorCode, message string, hint ...string) error {
	ce := &CommandError{Code: code, Message: message}
	if len(hint) > 0 {
		ce.Hint = hint[0]
	}
	if globals == nil {
		return ce
	}
	if globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteError(string(code), message, ce.Hint)
		return ce
	}
	fmt.Fprintf(globals.Stderr, "Error [%s]: %s", code, message)
	if ce.Hint != "" {
		fmt.Fprintf(globals.Stderr, " (hint: %s)", ce.Hint)
	}
	fmt.Fprintln(globals.Stderr)
	return ce
}
