package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/derive"
	"github.com/five82/marquee/internal/mutation"
)

type bookedMsg struct {
	sessionID int64
	result    mutation.BookingResult
	err       error
}

func (m *Model) openSeats(sessionID int64) {
	m.seatSession = sessionID
	m.seatCursor = api.Seat{RowNumber: 1, SeatNumber: 1}
	m.selected = nil
	m.currentView = ViewSeats
}

// toggleSeat adds or removes seat from the selection. Booked seats and
// seats outside the layout are ignored.
func toggleSeat(selected []api.Seat, details api.MovieSessionDetails, seat api.Seat) []api.Seat {
	if !details.Seats.Contains(seat) || details.IsBooked(seat) {
		return selected
	}
	if i := slices.Index(selected, seat); i >= 0 {
		return slices.Delete(slices.Clone(selected), i, i+1)
	}
	return append(slices.Clone(selected), seat)
}

// pruneSelection drops selected seats that have since been booked.
func pruneSelection(selected []api.Seat, details api.MovieSessionDetails) []api.Seat {
	out := selected[:0:0]
	for _, s := range selected {
		if details.Seats.Contains(s) && !details.IsBooked(s) {
			out = append(out, s)
		}
	}
	return out
}

func (m Model) handleSeatsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.query.Session(m.seatSession)
	if !st.HasData {
		return m, nil
	}
	layout := st.Data.Seats
	c := m.seatCursor
	switch {
	case key.Matches(msg, m.keys.Up):
		c.RowNumber--
	case key.Matches(msg, m.keys.Down):
		c.RowNumber++
	case key.Matches(msg, m.keys.Left):
		c.SeatNumber--
	case key.Matches(msg, m.keys.Right):
		c.SeatNumber++
	case key.Matches(msg, m.keys.Top):
		c.RowNumber = 1
	case key.Matches(msg, m.keys.Bottom):
		c.RowNumber = layout.Rows
	case key.Matches(msg, m.keys.ToggleSeat), key.Matches(msg, m.keys.Open):
		m.selected = toggleSeat(m.selected, st.Data, c)
		return m, nil
	case key.Matches(msg, m.keys.ClearSeats):
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.Book):
		return m.bookSelected()
	}
	c.RowNumber = max(1, min(c.RowNumber, layout.Rows))
	c.SeatNumber = max(1, min(c.SeatNumber, layout.SeatsPerRow))
	m.seatCursor = c
	return m, nil
}

func (m Model) bookSelected() (tea.Model, tea.Cmd) {
	if len(m.selected) == 0 || m.mutations == nil {
		return m, nil
	}
	if m.account != nil && !m.account.IsAuthenticated() {
		m.modal = newAuthModal(m.prefs.LastUsername, m.theme)
		return m, nil
	}
	if m.mutations.InFlight(mutation.BookingResource(m.seatSession)) {
		return m, nil
	}
	ctx, mutations := m.ctx, m.mutations
	sessionID := m.seatSession
	seats := slices.Clone(m.selected)
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		res, err := mutations.BookSeats(ctx, sessionID, seats)
		return bookedMsg{sessionID: sessionID, result: res, err: err}
	}
}

func (m Model) handleBooked(msg bookedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// The engine already reported the failure; keep the selection so the
		// user can adjust it, minus anything that turned out to be taken.
		if st := m.query.Session(msg.sessionID); st.HasData && msg.sessionID == m.seatSession {
			m.selected = pruneSelection(m.selected, st.Data)
		}
		return m, nil
	}
	if msg.sessionID == m.seatSession {
		m.selected = nil
	}
	m.currentView = ViewTickets
	m.category = derive.CategoryUnpaid
	m.ticketRow = 0
	return m, m.loadTicketSessions()
}

// seatState names the badge used for one seat.
func seatState(details api.MovieSessionDetails, selected []api.Seat, seat api.Seat) string {
	switch {
	case details.IsBooked(seat):
		return "booked"
	case slices.Contains(selected, seat):
		return "selected"
	default:
		return "free"
	}
}

func (m Model) renderSeats() string {
	height := m.contentHeight()
	st := m.query.Session(m.seatSession)
	title := m.seatTitle(st.Data)
	if !st.HasData {
		msg := m.loadingOrError("seat map", st.IsLoading, st.Err)
		return m.renderTitledBox(title, msg, m.width, height, true)
	}

	styles := m.theme.Styles()
	focus := styles.WithBackground(m.theme.FocusBg)
	details := st.Data
	pending := m.mutations != nil && m.mutations.InFlight(mutation.BookingResource(m.seatSession))

	var b strings.Builder
	screen := lipgloss.NewStyle().Width(details.Seats.SeatsPerRow*3 + 4).Align(lipgloss.Center)
	b.WriteString(focus.FaintText.Render(screen.Render("SCREEN")))
	b.WriteString("\n\n")
	for row := 1; row <= details.Seats.Rows; row++ {
		b.WriteString(focus.MutedText.Render(fmt.Sprintf("%2d  ", row)))
		for n := 1; n <= details.Seats.SeatsPerRow; n++ {
			seat := api.Seat{RowNumber: row, SeatNumber: n}
			cell := styles.StatusStyle(seatState(details, m.selected, seat)).Padding(0).Render(fmt.Sprintf("%2d", n))
			if seat == m.seatCursor {
				cell = lipgloss.NewStyle().Reverse(true).Render(fmt.Sprintf("%2d", n))
			}
			b.WriteString(cell)
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	legend := []string{
		styles.StatusStyle("free").Render("free"),
		styles.StatusStyle("selected").Render("selected"),
		styles.StatusStyle("booked").Render("booked"),
	}
	b.WriteString(strings.Join(legend, " "))
	b.WriteString("\n\n")

	if len(m.selected) == 0 {
		b.WriteString(focus.MutedText.Render("No seats selected"))
	} else {
		labels := make([]string, 0, len(m.selected))
		for _, s := range derive.SortSeats(m.selected) {
			labels = append(labels, derive.SeatLabel(s))
		}
		b.WriteString(focus.Text.Render("Selected: " + strings.Join(labels, ", ")))
	}
	if pending {
		b.WriteString("\n")
		b.WriteString(styles.StatusStyle("pending").Render("Booking..."))
	}
	return m.renderTitledBox(title, b.String(), m.width, height, true)
}

func (m Model) seatTitle(details api.MovieSessionDetails) string {
	title := fmt.Sprintf("Session #%d", m.seatSession)
	if details.ID == 0 {
		return title
	}
	if mv, ok := m.query.Movie(details.MovieID); ok {
		title = mv.Title
	}
	if c, ok := m.query.Cinema(details.CinemaID); ok {
		title += " · " + c.Name
	}
	if start := details.Start(); !start.IsZero() {
		title += " · " + derive.FormatDateTime(start.In(m.loc))
	}
	return title
}
