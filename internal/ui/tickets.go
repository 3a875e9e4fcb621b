package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/countdown"
	"github.com/five82/marquee/internal/derive"
	"github.com/five82/marquee/internal/mutation"
	"github.com/five82/marquee/internal/query"
)

type paidMsg struct {
	bookingID string
	result    mutation.PaymentResult
	err       error
}

// buildIndex joins whatever movies, cinemas and booking sessions are cached.
func (m Model) buildIndex() *derive.Index {
	movies := m.query.Movies().Data
	cinemas := m.query.Cinemas().Data
	var sessions []api.MovieSession
	for _, id := range derive.SessionIDs(m.query.Bookings().Data) {
		if st := m.query.Session(id); st.HasData {
			sessions = append(sessions, st.Data.MovieSession)
		}
	}
	return derive.NewIndex(movies, cinemas, sessions)
}

func (m Model) index() *derive.Index {
	if m.rt.index != nil {
		return m.rt.index.Get()
	}
	return m.buildIndex()
}

// ticketGroups partitions the signed-in user's bookings.
func (m Model) ticketGroups() derive.BookingGroups {
	if m.query == nil || (m.account != nil && !m.account.IsAuthenticated()) {
		return derive.BookingGroups{}
	}
	st := m.query.Bookings()
	if !st.HasData {
		return derive.BookingGroups{}
	}
	return derive.GroupBookings(st.Data, m.index().Session, m.now())
}

// loadTicketSessions fetches the session of every booking in one batch.
func (m Model) loadTicketSessions() tea.Cmd {
	if m.query == nil || (m.account != nil && !m.account.IsAuthenticated()) {
		return nil
	}
	st := m.query.Bookings()
	if !st.HasData {
		return nil
	}
	ids := derive.SessionIDs(st.Data)
	if len(ids) == 0 {
		return nil
	}
	ctx, q := m.ctx, m.query
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		_, err := q.LoadSessions(ctx, ids)
		return sessionsLoadedMsg{err: err}
	}
}

// syncTimers keeps one running countdown per unpaid booking. An expiring
// countdown invalidates the bookings list so the lapsed booking drops out.
// Live countdowns follow the payment window when settings change it.
func (m Model) syncTimers() {
	unpaid := m.ticketGroups().Unpaid
	timeout := m.query.PaymentTimeout()
	store := m.query.Store()

	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	live := make(map[string]bool, len(unpaid))
	for _, b := range unpaid {
		live[b.ID] = true
		if t, ok := m.rt.timers[b.ID]; ok {
			if deadline := b.BookedTime().Add(timeout); !t.Deadline().Equal(deadline) {
				t.Reset(deadline)
				t.Start()
			}
			continue
		}
		bookingID := b.ID
		t := countdown.ForBooking(b.BookedTime(), timeout,
			countdown.WithClock(m.now),
			countdown.OnExpire(func() {
				m.logger.Info("payment window expired", "booking_id", bookingID)
				store.Invalidate(query.BookingsKey())
			}))
		t.Start()
		m.rt.timers[b.ID] = t
	}
	for id, t := range m.rt.timers {
		if !live[id] {
			t.Stop()
			delete(m.rt.timers, id)
		}
	}
}

// remaining returns the payment countdown of an unpaid booking.
func (m Model) remaining(b api.Booking) string {
	m.rt.mu.Lock()
	t, ok := m.rt.timers[b.ID]
	m.rt.mu.Unlock()
	if ok {
		return t.Formatted()
	}
	return countdown.Format(countdown.Remaining(b.BookedTime(), m.query.PaymentTimeout(), m.now()))
}

func (m Model) handleTicketsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.account != nil && !m.account.IsAuthenticated() {
		if key.Matches(msg, m.keys.Open) {
			m.modal = newAuthModal(m.prefs.LastUsername, m.theme)
		}
		return m, nil
	}
	groups := m.ticketGroups()
	switch {
	case key.Matches(msg, m.keys.NextCategory):
		m.category = nextCategory(m.category, 1)
		m.ticketRow = 0
		return m, nil
	case key.Matches(msg, m.keys.PrevCategory):
		m.category = nextCategory(m.category, -1)
		m.ticketRow = 0
		return m, nil
	case key.Matches(msg, m.keys.Pay):
		list := groups.Get(m.category)
		if m.category != derive.CategoryUnpaid || m.ticketRow >= len(list) {
			return m, nil
		}
		return m.pay(list[m.ticketRow])
	}
	m.ticketRow = m.moveCursor(msg, m.ticketRow, len(groups.Get(m.category)))
	return m, nil
}

func nextCategory(c derive.Category, step int) derive.Category {
	n := len(derive.Categories)
	for i, cat := range derive.Categories {
		if cat == c {
			return derive.Categories[((i+step)%n+n)%n]
		}
	}
	return derive.Categories[0]
}

func (m Model) pay(b api.Booking) (tea.Model, tea.Cmd) {
	if m.mutations == nil || m.mutations.InFlight(mutation.PaymentResource(b.ID)) {
		return m, nil
	}
	ctx, mutations := m.ctx, m.mutations
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		res, err := mutations.PayBooking(ctx, b.ID)
		return paidMsg{bookingID: b.ID, result: res, err: err}
	}
}

func (m Model) handlePaid(msg paidMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		m.clampRows()
	}
	return m, nil
}

func (m Model) renderTickets() string {
	height := m.contentHeight()
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)

	if m.account != nil && !m.account.IsAuthenticated() {
		msg := styles.MutedText.Render("Sign in to see your tickets. Press ") +
			styles.AccentText.Render("enter") + styles.MutedText.Render(" or ") +
			styles.AccentText.Render("L") + styles.MutedText.Render(" to sign in.")
		return m.renderTitledBox("My tickets", msg, m.width, height, true)
	}

	st := m.query.Bookings()
	if !st.HasData {
		return m.renderTitledBox("My tickets", m.loadingOrError("bookings", st.IsLoading, st.Err), m.width, height, true)
	}

	groups := derive.GroupBookings(st.Data, m.index().Session, m.now())
	tabs := make([]string, 0, len(derive.Categories))
	for _, c := range derive.Categories {
		label := fmt.Sprintf("%s (%d)", c, len(groups.Get(c)))
		if c == m.category {
			tabs = append(tabs, styles.Selected.Bold(true).Render(" "+label+" "))
		} else {
			tabs = append(tabs, styles.MutedText.Render(" "+label+" "))
		}
	}

	var lines []string
	lines = append(lines, strings.Join(tabs, " "), "")
	list := groups.Get(m.category)
	if len(list) == 0 {
		lines = append(lines, styles.MutedText.Render("No "+strings.ToLower(m.category.String())+" bookings"))
	}
	ix := m.index()
	cursorLine := len(lines)
	for i, b := range list {
		line := m.ticketLine(ix, b)
		if i == m.ticketRow {
			cursorLine = len(lines)
			line = styles.Selected.Render(padRight(line, m.width))
		}
		lines = append(lines, line)
	}
	start, end := visibleWindow(cursorLine, len(lines), height-2)
	return m.renderTitledBox(fmt.Sprintf("My tickets (%d)", groups.Len()), strings.Join(lines[start:end], "\n"), m.width, height, true)
}

func (m Model) ticketLine(ix *derive.Index, b api.Booking) string {
	styles := m.theme.Styles()
	title := fmt.Sprintf("session #%d", b.MovieSessionID)
	if mv, ok := ix.Movie(b); ok {
		title = mv.Title
	}
	where := ""
	if c, ok := ix.Cinema(b); ok {
		where = c.Name
	}
	when := ""
	if s, ok := ix.Session(b); ok {
		when = derive.FormatDateTime(s.Start().In(m.loc))
	}
	seats := make([]string, 0, len(b.Seats))
	for _, s := range derive.SortSeats(b.Seats) {
		seats = append(seats, fmt.Sprintf("%d-%d", s.RowNumber, s.SeatNumber))
	}

	line := fmt.Sprintf("%s  %s  %s  %s",
		padRight(truncate(title, 28), 28),
		padRight(when, 11),
		padRight(truncate(where, 20), 20),
		strings.Join(seats, " "))

	switch {
	case m.mutations != nil && m.mutations.InFlight(mutation.PaymentResource(b.ID)):
		line += "  " + styles.StatusStyle("pending").Render("paying")
	case !b.IsPaid:
		left := m.remaining(b)
		badge := "unpaid"
		if left == countdown.Format(0) {
			badge = "expired"
		}
		line += "  " + styles.StatusStyle(badge).Render(left)
	}
	return line
}
