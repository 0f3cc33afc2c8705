package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vburojevic/hostlog/internal/domain"
)

// bannerWidth matches the runner's own 80 column banners
const bannerWidth = 79

// RelayTimeFormat is the timestamp layout of relayed lines in text mode
const RelayTimeFormat = "15:04:05.000"

// TextWriter renders display events for humans
type TextWriter struct {
	w     io.Writer
	color bool
}

// NewTextWriter creates a text writer; color enables lipgloss styling
func NewTextWriter(w io.Writer, color bool) *TextWriter {
	return &TextWriter{w: w, color: color}
}

func (t *TextWriter) render(style lipgloss.Style, s string) string {
	if !t.color {
		return s
	}
	return style.Render(s)
}

// Display writes msg followed by a newline
func (t *TextWriter) Display(msg string) error {
	_, err := fmt.Fprintln(t.w, msg)
	return err
}

// Banner writes an empty line and the title padded with stars
func (t *TextWriter) Banner(title string) error {
	title = strings.TrimSpace(title)
	stars := bannerWidth - len(title)
	if stars <= 3 {
		stars = 3
	}
	line := title + " " + strings.Repeat("*", stars)
	_, err := fmt.Fprintf(t.w, "\n%s\n", t.render(Styles.Banner, line))
	return err
}

// Result writes a status-coloured result message
func (t *TextWriter) Result(status domain.Status, msg string) error {
	_, err := fmt.Fprintln(t.w, t.render(StatusStyle(status), msg))
	return err
}

// Warning writes a runner-style warning
func (t *TextWriter) Warning(msg string) error {
	_, err := fmt.Fprintln(t.w, t.render(Styles.Warning, "[WARNING]: "+msg))
	return err
}

// Error writes a coded error
func (t *TextWriter) Error(code, msg string) error {
	_, err := fmt.Fprintln(t.w, t.render(Styles.Danger, fmt.Sprintf("Error [%s]: %s", code, msg)))
	return err
}

// RelayStarting writes the "starting to log" notice for host
func (t *TextWriter) RelayStarting(host string) error {
	_, err := fmt.Fprintf(t.w, "[%s] starting to log\n", t.render(Styles.Host, host))
	return err
}

// RelayWaiting writes the "waiting on logger" notice for host
func (t *TextWriter) RelayWaiting(host string) error {
	_, err := fmt.Fprintf(t.w, "[%s] %s\n", t.render(Styles.Host, host), t.render(Styles.Waiting, "Waiting on logger"))
	return err
}

// RelayLine writes a timestamped, host-tagged line
func (t *TextWriter) RelayLine(line domain.RelayLine) error {
	_, err := fmt.Fprintf(t.w, "%s [%s] %s\n",
		t.render(Styles.Timestamp, line.Timestamp.Format(RelayTimeFormat)),
		t.render(Styles.Host, line.Host),
		line.Text)
	return err
}

// Recap writes one counter line per host
func (t *TextWriter) Recap(stats []domain.HostStats) error {
	for _, s := range stats {
		host := fmt.Sprintf("%-26s", s.Host)
		switch {
		case s.Failures > 0 || s.Unreachable > 0:
			host = t.render(Styles.Failed, host)
		case s.Changed > 0:
			host = t.render(Styles.Changed, host)
		default:
			host = t.render(Styles.OK, host)
		}
		_, err := fmt.Fprintf(t.w, "%s : %s %s %s %s\n", host,
			counter("ok", s.OK), counter("changed", s.Changed),
			counter("unreachable", s.Unreachable), counter("failed", s.Failures))
		if err != nil {
			return err
		}
	}
	return nil
}

func counter(label string, n int) string {
	return fmt.Sprintf("%s=%-4d", label, n)
}
