package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/vburojevic/hostlog/internal/domain"
)

// Styles contains all the lipgloss styles used in text output
var Styles = struct {
	// Result styles
	OK          lipgloss.Style
	Changed     lipgloss.Style
	Failed      lipgloss.Style
	Skipped     lipgloss.Style
	Unreachable lipgloss.Style
	Debug       lipgloss.Style

	// Relay styles
	Timestamp lipgloss.Style
	Host      lipgloss.Style
	Waiting   lipgloss.Style

	// Misc
	Banner  lipgloss.Style
	Warning lipgloss.Style
	Danger  lipgloss.Style
	Label   lipgloss.Style
}{
	OK:          lipgloss.NewStyle().Foreground(lipgloss.Color("42")),  // Green
	Changed:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // Orange
	Failed:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // Red
	Skipped:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),  // Cyan
	Unreachable: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	Debug:       lipgloss.NewStyle().Foreground(lipgloss.Color("243")), // Gray

	Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("244")), // Gray
	Host:      lipgloss.NewStyle().Foreground(lipgloss.Color("33")),  // Blue
	Waiting:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),

	Banner:  lipgloss.NewStyle().Bold(true),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true), // Magenta bold
	Danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
}

// StatusStyle returns the style for a result status
func StatusStyle(status domain.Status) lipgloss.Style {
	switch status {
	case domain.StatusOK:
		return Styles.OK
	case domain.StatusChanged:
		return Styles.Changed
	case domain.StatusFailed, domain.StatusIgnored:
		return Styles.Failed
	case domain.StatusSkipped, domain.StatusIncluded:
		return Styles.Skipped
	case domain.StatusUnreachable:
		return Styles.Unreachable
	case domain.StatusRetry:
		return Styles.Debug
	default:
		return lipgloss.NewStyle()
	}
}

// ColorEnabled reports whether w is a terminal that should get colours
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
