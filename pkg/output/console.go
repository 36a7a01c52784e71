// Package output renders human console summaries.
package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	isatty "github.com/mattn/go-isatty"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/validate"
)

var (
	styleArrow   = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	styleValid   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleInvalid = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDesc    = lipgloss.NewStyle().Faint(true)
	styleWarnLbl = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleWarnTxt = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleNote    = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Faint(true)
	colorEnabled = true
)

// InitConsole configures color output based on noColor flag and TTY detection
func InitConsole(noColor bool) {
	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	colorEnabled = tty && !noColor
}

func r(st lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return st.Render(s)
}

func statusStyle(s batch.Status) lipgloss.Style {
	switch s {
	case batch.StatusValid:
		return styleValid
	case batch.StatusInvalid:
		return styleInvalid
	default:
		return styleError
	}
}

// Verdict renders a report as a headline followed by one faint line per
// finding.
func Verdict(rep *validate.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", r(styleArrow, "→"), rep.Key, r(statusStyle(rep.Status), rep.Status.String()))
	for _, f := range rep.Findings {
		b.WriteString(r(styleDesc, "    - "+f.Message(rep.Key)))
		b.WriteByte('\n')
	}
	if rep.Err != nil {
		b.WriteString(r(styleDesc, "    "+ShortError(rep.Err)))
		b.WriteByte('\n')
	}
	return b.String()
}

// Warnf returns a single-line colored warning string with a standard prefix.
func Warnf(format string, a ...interface{}) string {
	msg := fmt.Sprintf(format, a...)
	return r(styleWarnLbl, "Warning:") + " " + r(styleWarnTxt, msg)
}

// Notef returns a faint informational line.
func Notef(format string, a ...interface{}) string {
	return r(styleNote, fmt.Sprintf(format, a...))
}

// ShortError keeps the last meaningful line of a verbose error, dropping the
// HTTP dump the storage SDK appends.
func ShortError(err error) string {
	if err == nil {
		return ""
	}
	lines := strings.Split(err.Error(), "\n")
	var candidate string
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if t == "" || strings.HasPrefix(t, "RESPONSE") || strings.HasPrefix(t, "ERROR CODE:") || strings.HasPrefix(t, "--------") {
			continue
		}
		if candidate == "" {
			candidate = t
		}
	}
	if candidate == "" && len(lines) > 0 {
		candidate = strings.TrimSpace(lines[0])
	}
	return candidate
}
