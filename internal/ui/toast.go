package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/marquee/internal/notify"
)

// toast is a notice with its expiry.
type toast struct {
	notice notify.Notice
	until  time.Time
}

// pruneToasts drops expired toasts and keeps at most MaxToasts, newest last.
func pruneToasts(toasts []toast, now time.Time) []toast {
	out := toasts[:0]
	for _, t := range toasts {
		if now.Before(t.until) {
			out = append(out, t)
		}
	}
	if over := len(out) - MaxToasts; over > 0 {
		out = out[over:]
	}
	return out
}

var toastIcons = map[string]string{
	"check-circle":   "✓",
	"alert-circle":   "!",
	"lock":           "⚿",
	"shield-alert":   "⊘",
	"search-x":       "?",
	"alert-triangle": "⚠",
	"timer":          "◷",
	"server-off":     "▣",
	"wifi-off":       "⚠",
	"x-circle":       "✗",
}

func (m Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	width := min(60, max(m.width-4, 20))
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		color := m.theme.Info
		switch t.notice.Level {
		case notify.LevelSuccess:
			color = m.theme.Success
		case notify.LevelError:
			color = m.theme.Danger
		}
		icon := toastIcons[t.notice.Icon]
		if icon == "" {
			icon = "•"
		}
		body := lipgloss.NewStyle().Bold(true).Render(icon + " " + t.notice.Title)
		if t.notice.Description != "" {
			body += "\n" + truncate(t.notice.Description, width-4)
		}
		lines = append(lines, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(color)).
			Foreground(lipgloss.Color(m.theme.Text)).
			Background(lipgloss.Color(m.theme.Surface)).
			Padding(0, 1).
			Width(width).
			Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Right, lines...)
}

// overlayBottom replaces the last lines of content with overlay,
// right-aligned.
func overlayBottom(content, overlay string) string {
	base := strings.Split(content, "\n")
	top := strings.Split(overlay, "\n")
	if len(top) > len(base) {
		return content
	}
	start := len(base) - len(top)
	for i, line := range top {
		width := lipgloss.Width(base[start+i])
		pad := max(width-lipgloss.Width(line), 0)
		base[start+i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(base, "\n")
}
