package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/derive"
	"github.com/five82/marquee/internal/query"
)

// moveCursor applies a navigation key to cursor within count rows.
func (m Model) moveCursor(msg tea.KeyMsg, cursor, count int) int {
	if count == 0 {
		return 0
	}
	page := max(m.contentHeight()-2, 1)
	switch {
	case key.Matches(msg, m.keys.Down):
		cursor++
	case key.Matches(msg, m.keys.Up):
		cursor--
	case key.Matches(msg, m.keys.Top):
		cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		cursor = count - 1
	case key.Matches(msg, m.keys.PageDown):
		cursor += page
	case key.Matches(msg, m.keys.PageUp):
		cursor -= page
	}
	return max(0, min(cursor, count-1))
}

// clampRows keeps every cursor inside its list after data changed.
func (m *Model) clampRows() {
	if m.query == nil {
		return
	}
	clamp := func(row, n int) int { return max(0, min(row, n-1)) }
	m.movieRow = clamp(m.movieRow, len(m.query.Movies().Data))
	m.cinemaRow = clamp(m.cinemaRow, len(m.query.Cinemas().Data))
	if m.currentView == ViewSessions {
		m.sessionRow = clamp(m.sessionRow, len(flattenGroups(m.sessionGroups())))
	}
	if m.currentView == ViewTickets {
		m.ticketRow = clamp(m.ticketRow, len(m.ticketGroups().Get(m.category)))
	}
}

func (m Model) handleCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.query == nil {
		return m, nil
	}
	if m.currentView == ViewMovies {
		movies := m.query.Movies().Data
		if key.Matches(msg, m.keys.Open) && m.movieRow < len(movies) {
			mv := movies[m.movieRow]
			m.openSessions(sessionsSource{id: mv.ID, title: mv.Title})
			return m, nil
		}
		m.movieRow = m.moveCursor(msg, m.movieRow, len(movies))
		return m, nil
	}

	cinemas := m.query.Cinemas().Data
	if key.Matches(msg, m.keys.Open) && m.cinemaRow < len(cinemas) {
		c := cinemas[m.cinemaRow]
		m.openSessions(sessionsSource{cinema: true, id: c.ID, title: c.Name})
		return m, nil
	}
	m.cinemaRow = m.moveCursor(msg, m.cinemaRow, len(cinemas))
	return m, nil
}

func (m *Model) openSessions(src sessionsSource) {
	m.sessions = src
	m.sessionRow = 0
	m.currentView = ViewSessions
}

// loadingOrError renders the placeholder for a list without data.
func (m Model) loadingOrError(what string, loading bool, err error) string {
	styles := m.theme.Styles()
	switch {
	case err != nil:
		return styles.DangerText.Render("Could not load "+what+": ") + styles.MutedText.Render(apperr.Message(err))
	case loading:
		return styles.MutedText.Render("Loading " + what + "...")
	default:
		return styles.MutedText.Render("No " + what + " yet")
	}
}

func (m Model) renderMovies() string {
	st := m.query.Movies()
	height := m.contentHeight()
	if !st.HasData || len(st.Data) == 0 {
		msg := m.loadingOrError("movies", st.IsLoading, st.Err)
		return m.renderTitledBox("Movies", msg, m.width, height, true)
	}

	rows := make([]string, len(st.Data))
	for i, mv := range st.Data {
		rows[i] = fmt.Sprintf("%s  %s  %s",
			padRight(truncate(mv.Title, 36), 36),
			fmt.Sprintf("★ %.1f", mv.Rating),
			derive.FormatDuration(mv.LengthMinutes))
		if mv.Year > 0 {
			rows[i] += fmt.Sprintf("  %d", mv.Year)
		}
	}
	title := fmt.Sprintf("Movies (%d)", len(st.Data))
	if m.width < LayoutDetailWidth {
		return m.renderTitledBox(title, m.renderRows(rows, m.movieRow, height-2), m.width, height, true)
	}

	listWidth := m.width * 55 / 100
	list := m.renderTitledBox(title, m.renderRows(rows, m.movieRow, height-2), listWidth, height, true)
	detail := m.renderTitledBox("Details", m.movieDetail(st.Data[m.movieRow], m.width-listWidth-4), m.width-listWidth, height, false)
	return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
}

func (m Model) movieDetail(mv api.Movie, width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(mv.Title))
	b.WriteString("\n")
	meta := []string{derive.FormatDuration(mv.LengthMinutes), fmt.Sprintf("rating %.1f", mv.Rating)}
	if mv.Year > 0 {
		meta = append([]string{fmt.Sprint(mv.Year)}, meta...)
	}
	b.WriteString(styles.MutedText.Render(strings.Join(meta, " · ")))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(max(width, 10)).Render(mv.Description))
	if m.posterURL != nil && mv.PosterImage != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.FaintText.Render("poster " + m.posterURL(mv.PosterImage)))
	}
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Render("enter") + styles.MutedText.Render(" sessions"))
	return b.String()
}

func (m Model) renderCinemas() string {
	st := m.query.Cinemas()
	height := m.contentHeight()
	if !st.HasData || len(st.Data) == 0 {
		msg := m.loadingOrError("cinemas", st.IsLoading, st.Err)
		return m.renderTitledBox("Cinemas", msg, m.width, height, true)
	}
	rows := make([]string, len(st.Data))
	for i, c := range st.Data {
		rows[i] = padRight(truncate(c.Name, 32), 32) + "  " + c.Address
	}
	title := fmt.Sprintf("Cinemas (%d)", len(st.Data))
	return m.renderTitledBox(title, m.renderRows(rows, m.cinemaRow, height-2), m.width, height, true)
}

// renderRows renders plain rows with the cursor row highlighted, scrolled
// so the cursor is visible.
func (m Model) renderRows(rows []string, cursor, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	start, end := visibleWindow(cursor, len(rows), height)
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		if i == cursor {
			out = append(out, styles.Selected.Render(padRight(rows[i], m.width)))
			continue
		}
		out = append(out, styles.Text.Render(rows[i]))
	}
	return strings.Join(out, "\n")
}

// sessionGroups returns the sessions of the current source grouped by day.
func (m Model) sessionGroups() []derive.DateGroup {
	if m.query == nil {
		return nil
	}
	var st query.State[[]api.MovieSession]
	if m.sessions.cinema {
		st = m.query.CinemaSessions(m.sessions.id)
	} else {
		st = m.query.MovieSessions(m.sessions.id)
	}
	return derive.SessionsByDate(st.Data, m.loc)
}

// flattenGroups lists the sessions of groups in display order.
func flattenGroups(groups []derive.DateGroup) []api.MovieSession {
	var out []api.MovieSession
	for _, g := range groups {
		out = append(out, g.Sessions...)
	}
	return out
}

func (m Model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := flattenGroups(m.sessionGroups())
	if key.Matches(msg, m.keys.Open) && m.sessionRow < len(sessions) {
		m.openSeats(sessions[m.sessionRow].ID)
		return m, nil
	}
	m.sessionRow = m.moveCursor(msg, m.sessionRow, len(sessions))
	return m, nil
}

func (m Model) renderSessions() string {
	height := m.contentHeight()
	title := "Sessions · " + m.sessions.title
	var st query.State[[]api.MovieSession]
	if m.sessions.cinema {
		st = m.query.CinemaSessions(m.sessions.id)
	} else {
		st = m.query.MovieSessions(m.sessions.id)
	}
	groups := derive.SessionsByDate(st.Data, m.loc)
	if len(groups) == 0 {
		msg := m.loadingOrError("sessions", st.IsLoading, st.Err)
		return m.renderTitledBox(title, msg, m.width, height, true)
	}

	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	var lines []string
	cursorLine := 0
	idx := 0
	for _, g := range groups {
		lines = append(lines, styles.AccentText.Bold(true).Render(g.Label))
		for _, s := range g.Sessions {
			label := "  " + derive.FormatTime(s.Start().In(m.loc)) + "  " + m.sessionCounterpart(s)
			if idx == m.sessionRow {
				cursorLine = len(lines)
				lines = append(lines, styles.Selected.Render(padRight(label, m.width)))
			} else {
				lines = append(lines, styles.Text.Render(label))
			}
			idx++
		}
	}
	start, end := visibleWindow(cursorLine, len(lines), height-2)
	return m.renderTitledBox(title, strings.Join(lines[start:end], "\n"), m.width, height, true)
}

// sessionCounterpart names the other side of a session: the cinema when
// browsing a movie, the movie when browsing a cinema.
func (m Model) sessionCounterpart(s api.MovieSession) string {
	if m.sessions.cinema {
		if mv, ok := m.query.Movie(s.MovieID); ok {
			return mv.Title
		}
		return fmt.Sprintf("movie #%d", s.MovieID)
	}
	if c, ok := m.query.Cinema(s.CinemaID); ok {
		return c.Name
	}
	return fmt.Sprintf("cinema #%d", s.CinemaID)
}
