package wire

import "strconv"

// CommandID identifies a protocol command.
type CommandID int

const (
	CmdRun                       CommandID = 101
	CmdKillThread                CommandID = 104
	CmdSuspendThread             CommandID = 105
	CmdRunThread                 CommandID = 106
	CmdStepInto                  CommandID = 107
	CmdStepOver                  CommandID = 108
	CmdStepReturn                CommandID = 109
	CmdGetVariable               CommandID = 110
	CmdSetBreakpoint             CommandID = 111
	CmdRemoveBreakpoint          CommandID = 112
	CmdEvaluateExpression        CommandID = 113
	CmdGetFrame                  CommandID = 114
	CmdChangeVariable            CommandID = 117
	CmdSetPropertyTrace          CommandID = 133
	CmdEvaluateConsoleExpression CommandID = 134
	CmdRunCustomOperation        CommandID = 135
	CmdEnableDontTrace           CommandID = 141
	CmdVersion                   CommandID = 501
)

var commandNames = map[CommandID]string{
	CmdRun:                       "run",
	CmdKillThread:                "kill_thread",
	CmdSuspendThread:             "suspend_thread",
	CmdRunThread:                 "run_thread",
	CmdStepInto:                  "step_in",
	CmdStepOver:                  "step_over",
	CmdStepReturn:                "step_return",
	CmdGetVariable:               "get_variable",
	CmdSetBreakpoint:             "add_breakpoint",
	CmdRemoveBreakpoint:          "remove_breakpoint",
	CmdEvaluateExpression:        "evaluate_expression",
	CmdGetFrame:                  "get_frame",
	CmdChangeVariable:            "change_variable",
	CmdSetPropertyTrace:          "set_property_trace",
	CmdEvaluateConsoleExpression: "evaluate_console_expression",
	CmdRunCustomOperation:        "run_custom_operation",
	CmdEnableDontTrace:           "enable_dont_trace",
	CmdVersion:                   "version",
}

// String returns the command's name, or its number when unknown.
func (c CommandID) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// StopReason is the stop_reason attribute of a suspend notification.
type StopReason int

const (
	StopSuspend    StopReason = 105
	StopStepInto   StopReason = 107
	StopStepOver   StopReason = 108
	StopStepReturn StopReason = 109
	StopBreakpoint StopReason = 111
)

// ParseStopReason accepts a numeric code or a name such as "breakpoint".
func ParseStopReason(s string) (StopReason, bool) {
	switch s {
	case "breakpoint", "":
		return StopBreakpoint, true
	case "step_over", "over":
		return StopStepOver, true
	case "step_return", "return":
		return StopStepReturn, true
	case "step_in", "step_into":
		return StopStepInto, true
	case "suspend":
		return StopSuspend, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return StopReason(n), true
}

// Fragment is the attribute text that identifies this stop reason in a record.
func (r StopReason) Fragment() string {
	return `stop_reason="` + strconv.Itoa(int(r)) + `"`
}

func (r StopReason) String() string {
	return strconv.Itoa(int(r))
}
