package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vburojevic/dbgwire/internal/scenario"
	"github.com/vburojevic/dbgwire/internal/supervisor"
)

// reportWriter writes one text report file per failed run.
type reportWriter struct {
	pathBuilder func(*scenario.Report) (string, error)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func newReportWriter(dir string) *reportWriter {
	if dir == "" {
		return &reportWriter{}
	}
	return &reportWriter{pathBuilder: func(rep *scenario.Report) (string, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		id := rep.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		name := unsafeName.ReplaceAllString(rep.Scenario, "_")
		return filepath.Join(dir, fmt.Sprintf("%s-%s.txt", name, id)), nil
	}}
}

// Write stores rep and returns the file path. A writer without a
// directory does nothing.
func (r *reportWriter) Write(rep *scenario.Report) (path string, err error) {
	if r.pathBuilder == nil {
		return "", nil
	}

	path, err = r.pathBuilder(rep)
	if err != nil {
		return "", fmt.Errorf("failed to build path: %w", err)
	}

	outputFile, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if cerr := outputFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	bufferedWriter := bufio.NewWriter(outputFile)

	fmt.Fprintf(bufferedWriter, "run:      %s\n", rep.RunID)
	fmt.Fprintf(bufferedWriter, "scenario: %s\n", rep.Scenario)
	fmt.Fprintf(bufferedWriter, "file:     %s\n", rep.File)
	fmt.Fprintf(bufferedWriter, "port:     %d\n", rep.Port)
	fmt.Fprintf(bufferedWriter, "state:    %s\n", rep.State)
	fmt.Fprintf(bufferedWriter, "duration: %s\n\n", rep.Duration.Round(time.Millisecond))
	if err := renderFailure(bufferedWriter, rep, false); err != nil {
		return "", err
	}
	if err := bufferedWriter.Flush(); err != nil {
		return "", err
	}
	return path, nil
}

// renderFailure prints a failed run. Supervisor failures carry their own
// captured output; other errors are rendered with the report's.
func renderFailure(w io.Writer, rep *scenario.Report, styled bool) error {
	var f *supervisor.Failure
	if !errors.As(rep.Err, &f) {
		reason := "run failed"
		if rep.Err != nil {
			reason = rep.Err.Error()
		}
		f = &supervisor.Failure{
			Reason:   reason,
			ExitCode: rep.ExitCode,
			Stdout:   rep.Stdout,
			Stderr:   rep.Stderr,
			Log:      rep.Log,
		}
	}
	return f.Render(w, styled)
}
