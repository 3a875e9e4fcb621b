package ui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/marquee/internal/logtail"
)

// activityLevels is the cycle of minimum levels shown in the activity view.
var activityLevels = []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError, slog.LevelDebug}

// activityState holds the activity log view state.
type activityState struct {
	entries  []logtail.Entry
	follow   bool
	minLevel slog.Level
	err      error
}

func newActivityState() activityState {
	return activityState{follow: true, minLevel: slog.LevelInfo}
}

type activityMsg struct {
	entries []logtail.Entry
	err     error
}

// refreshActivity reads the tail of the log file in the background.
func (m Model) refreshActivity() tea.Cmd {
	if m.logPath == "" {
		return nil
	}
	path, level := m.logPath, m.activity.minLevel
	return func() tea.Msg {
		lines, err := logtail.Read(path, ActivityLineLimit)
		if err != nil {
			return activityMsg{err: err}
		}
		return activityMsg{entries: logtail.ParseAll(lines, level)}
	}
}

func (m *Model) handleActivity(msg activityMsg) {
	m.activity.err = msg.err
	if msg.err == nil {
		m.activity.entries = msg.entries
	}
	m.resizeActivity()
	m.activityViewport.SetContent(m.renderActivityContent())
	if m.activity.follow {
		m.activityViewport.GotoBottom()
	}
}

func (m *Model) resizeActivity() {
	w, h := max(m.width-2, 1), max(m.contentHeight()-2, 1)
	if m.activityViewport.Width == 0 {
		m.activityViewport = viewport.New(w, h)
		return
	}
	m.activityViewport.Width = w
	m.activityViewport.Height = h
}

func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.activity.follow = !m.activity.follow
		if m.activity.follow {
			m.activityViewport.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.CycleLogLevel):
		for i, lvl := range activityLevels {
			if lvl == m.activity.minLevel {
				m.activity.minLevel = activityLevels[(i+1)%len(activityLevels)]
				break
			}
		}
		return m, m.refreshActivity()
	case key.Matches(msg, m.keys.Top):
		m.activity.follow = false
		m.activityViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.activityViewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.activityViewport, cmd = m.activityViewport.Update(msg)
	if !m.activityViewport.AtBottom() {
		m.activity.follow = false
	}
	return m, cmd
}

func (m Model) levelStyle(level slog.Level) lipgloss.Style {
	styles := m.theme.Styles()
	switch {
	case level >= slog.LevelError:
		return styles.DangerText
	case level >= slog.LevelWarn:
		return styles.WarningText
	case level < slog.LevelInfo:
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

func (m Model) renderActivityContent() string {
	styles := m.theme.Styles()
	if m.activity.err != nil {
		return styles.DangerText.Render("Cannot read log: " + m.activity.err.Error())
	}
	if len(m.activity.entries) == 0 {
		return styles.MutedText.Render("No activity yet")
	}
	lines := make([]string, 0, len(m.activity.entries))
	for _, e := range m.activity.entries {
		var b strings.Builder
		if !e.Time.IsZero() {
			b.WriteString(styles.FaintText.Render(e.Time.In(m.loc).Format("15:04:05")))
			b.WriteString(" ")
		}
		b.WriteString(m.levelStyle(e.Level).Render(padRight(e.Level.String(), 5)))
		b.WriteString(" ")
		b.WriteString(styles.Text.Render(e.Message))
		for _, a := range e.Attrs {
			if a.Key == "app" || a.Key == "source" {
				continue
			}
			b.WriteString(" ")
			b.WriteString(styles.MutedText.Render(a.Key + "="))
			b.WriteString(styles.AccentText.Render(a.Value))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderActivity() string {
	title := "Activity · " + m.activity.minLevel.String() + "+"
	if m.activity.follow {
		title += " · following"
	}
	return m.renderTitledBox(title, m.activityViewport.View(), m.width, m.contentHeight(), true)
}
