package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) viewName() string {
	switch m.currentView {
	case ViewMovies:
		return "Movies"
	case ViewCinemas:
		return "Cinemas"
	case ViewSessions:
		return "Sessions"
	case ViewSeats:
		return "Seats"
	case ViewTickets:
		return "Tickets"
	case ViewActivity:
		return "Activity"
	default:
		return ""
	}
}

// renderHeader renders the status bar: logo, view, user and connectivity.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{
		bg.Render("marquee", styles.Logo),
		bg.Render(m.viewName(), styles.AccentText),
	}

	if m.account != nil {
		if m.account.IsAuthenticated() {
			parts = append(parts, bg.Render("● "+m.account.Username(), styles.SuccessText))
		} else {
			parts = append(parts, bg.Render("○ signed out", styles.MutedText))
		}
	}

	parts = append(parts, m.connectivity(styles, bg))

	if m.width >= LayoutCompactWidth && m.query != nil {
		parts = append(parts,
			bg.Render("cache", styles.FaintText)+bg.Spaces(1)+
				bg.Render(fmt.Sprint(m.query.Store().Len()), styles.MutedText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// connectivity summarises the last sync rounds.
func (m Model) connectivity(styles Styles, bg BgStyle) string {
	snap := m.syncSnap
	switch {
	case snap.IsOffline():
		msg := "OFFLINE"
		if snap.Synced() {
			msg += " · data from " + snap.LastSync.In(m.loc).Format("15:04:05")
		}
		return bg.Render(msg, styles.DangerText)
	case snap.LastError != nil:
		return bg.Render("Retrying...", styles.WarningText.Bold(true))
	case snap.Synced():
		ago := m.now().Sub(snap.LastSync).Truncate(time.Second)
		return bg.Render("synced", styles.FaintText) + bg.Spaces(1) + bg.Render(ago.String()+" ago", styles.MutedText)
	default:
		return bg.Render("Connecting...", styles.WarningText.Bold(true))
	}
}

// renderCommandBar lists the keys of the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewMovies, ViewCinemas:
		commands = []cmd{{"j/k", "Navigate"}, {"enter", "Sessions"}}
	case ViewSessions:
		commands = []cmd{{"j/k", "Navigate"}, {"enter", "Seats"}, {"esc", "Back"}}
	case ViewSeats:
		commands = []cmd{{"hjkl", "Move"}, {"Space", "Select"}, {"x", "Clear"}, {"b", "Book"}, {"esc", "Back"}}
	case ViewTickets:
		commands = []cmd{{"tab", "Category"}, {"j/k", "Navigate"}, {"p", "Pay"}, {"esc", "Back"}}
	case ViewActivity:
		follow := "Pause"
		if !m.activity.follow {
			follow = "Follow"
		}
		commands = []cmd{{"f", follow}, {"v", "Level"}, {"g/G", "Top/Bottom"}, {"esc", "Back"}}
	}
	commands = append(commands, cmd{"m/c/t/a", "Views"}, cmd{"r", "Refresh"})
	account := "Sign in"
	if m.account != nil && m.account.IsAuthenticated() {
		account = "Sign out"
	}
	commands = append(commands, cmd{"L", account}, cmd{"?", "More"})

	colon := bg.Render(":", styles.FaintText)
	segments := make([]string, 0, len(commands))
	for _, c := range commands {
		segments = append(segments, bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Width(m.width).
		Render(bg.Join(segments, "  "))
}
