package cli

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals, port int) error {
	// quiet + verbose contradict each other
	if globals != nil && globals.Quiet && globals.Verbose {
		return reportError(globals, CodeInvalidFlags, "--quiet cannot be combined with --verbose", "drop one of --quiet or --verbose")
	}
	// quiet + text leaves nothing but the final lines; steer to ndjson
	if globals != nil && globals.Format == "text" && globals.Quiet {
		return reportError(globals, CodeInvalidFlags, "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	if port < 0 || port > 65535 {
		return reportError(globals, CodeInvalidFlags, "--port must be between 0 and 65535", "use 0 to pick a free port")
	}
	return nil
}
