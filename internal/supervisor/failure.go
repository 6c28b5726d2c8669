package supervisor

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Failure is returned when a run does not pass verification. It carries
// everything captured from the process and the scenario task.
type Failure struct {
	Reason   string
	ExitCode int
	Stdout   []string
	Stderr   []string
	Log      []string
	Cause    error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(f.Reason)
	if f.Cause != nil {
		fmt.Fprintf(&b, ": %v", f.Cause)
	}
	writeSection(&b, "Stdout:", f.Stdout)
	writeSection(&b, "Stderr:", f.Stderr)
	writeSection(&b, "Log:", f.Log)
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

func writeSection(b *strings.Builder, heading string, lines []string) {
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(strings.Join(lines, "\n"))
}

var (
	reasonStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// reportTailLines caps each section when rendering for a terminal.
const reportTailLines = 200

// Render writes the failure to w. With styled set, headings are colored
// and long sections are cut to their last lines.
func (f *Failure) Render(w io.Writer, styled bool) error {
	if !styled {
		_, err := fmt.Fprintln(w, f.Error())
		return err
	}
	var b strings.Builder
	reason := f.Reason
	if f.Cause != nil {
		reason += ": " + f.Cause.Error()
	}
	b.WriteString(reasonStyle.Render(reason))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("exit code %d", f.ExitCode)))
	b.WriteString("\n")
	for _, sec := range []struct {
		heading string
		lines   []string
	}{
		{"Stdout", f.Stdout},
		{"Stderr", f.Stderr},
		{"Log", f.Log},
	} {
		b.WriteString(headingStyle.Render(sec.heading))
		b.WriteString("\n")
		shown := tail(sec.lines, reportTailLines)
		if skipped := len(sec.lines) - len(shown); skipped > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf("... %d earlier lines", skipped)))
			b.WriteString("\n")
		}
		for _, line := range shown {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
