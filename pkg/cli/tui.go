// Package cli provides terminal output helpers for the livecoach CLI:
// a bordered live-session frame, structured result output and small
// formatting utilities.
package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for the live session view.
type Theme struct {
	Primary lipgloss.Color // accent color for borders and labels
	Dim     lipgloss.Color // status and help text
}

// DefaultTheme is the default coral theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#ff6f61"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Section is a labeled pane inside a Frame, e.g. the transcript or the
// telemetry readout. Content is polled on every render.
type Section struct {
	Label   string
	Content func() []string
}

// Frame renders the live session view: a bordered box with a title,
// the session status, labeled panes and a help line.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render draws the frame at the given terminal size.
func (f Frame) Render(width, height int) string {
	if width < 8 || height < 6 {
		return "Loading..."
	}

	innerWidth := width - 4
	var b strings.Builder

	f.writeBorder(&b, width, "╭", "╮")
	f.writeTitle(&b, width)
	f.writeRow(&b, innerWidth, "")

	// Split the remaining rows evenly between panes. Fixed rows:
	// top border, title, spacer, bottom border, help, plus one label
	// row per pane.
	panes := max(len(f.Sections), 1)
	paneRows := max((height-5-panes)/panes, 2)

	for _, sec := range f.Sections {
		f.writePane(&b, width, innerWidth, paneRows, sec)
	}

	f.writeBorder(&b, width, "╰", "╯")
	b.WriteString(f.Styles.Help.Render(f.Help))
	return b.String()
}

func (f Frame) writeBorder(b *strings.Builder, width int, left, right string) {
	b.WriteString(f.Styles.Border.Render(left + strings.Repeat("─", width-2) + right))
	b.WriteByte('\n')
}

// writeTitle emits the top row: │ title [status]      │
func (f Frame) writeTitle(b *strings.Builder, width int) {
	title := f.Styles.Title.Render(f.Title)
	status := f.Styles.Help.Render("[" + f.Status + "]")
	gap := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))

	b.WriteString(f.Styles.Border.Render("│"))
	b.WriteString(" " + title + " " + status + strings.Repeat(" ", gap) + " ")
	b.WriteString(f.Styles.Border.Render("│"))
	b.WriteByte('\n')
}

// writeRow emits one bordered content row, truncated to fit.
func (f Frame) writeRow(b *strings.Builder, innerWidth int, text string) {
	if innerWidth > 1 && lipgloss.Width(text) > innerWidth {
		text = clipToWidth(text, innerWidth-1) + "…"
	}
	b.WriteString(f.Styles.Border.Render("│"))
	b.WriteString(" " + text + strings.Repeat(" ", max(0, innerWidth-lipgloss.Width(text))) + " ")
	b.WriteString(f.Styles.Border.Render("│"))
	b.WriteByte('\n')
}

// writePane emits a labeled divider followed by the tail of the pane's
// content, padded to exactly rows lines.
func (f Frame) writePane(b *strings.Builder, width, innerWidth, rows int, sec Section) {
	label := f.Styles.Label.Render(sec.Label)
	rule := max(0, width-3-lipgloss.Width(label))
	b.WriteString(f.Styles.Border.Render("├─"))
	b.WriteString(label)
	b.WriteString(f.Styles.Border.Render(strings.Repeat("─", rule) + "┤"))
	b.WriteByte('\n')

	content := sec.Content()
	if len(content) > rows {
		content = content[len(content)-rows:]
	}
	for i := 0; i < rows; i++ {
		var text string
		if i < len(content) {
			text = content[i]
		}
		f.writeRow(b, innerWidth, text)
	}
}

// clipToWidth cuts s to at most width display cells without splitting a
// multi-byte rune.
func clipToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	used := 0
	for i, r := range s {
		w := lipgloss.Width(string(r))
		if used+w > width {
			return s[:i]
		}
		used += w
	}
	return s
}
