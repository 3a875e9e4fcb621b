package ui

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/auth"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/derive"
	"github.com/five82/marquee/internal/logging"
	"github.com/five82/marquee/internal/mutation"
	"github.com/five82/marquee/internal/notify"
	"github.com/five82/marquee/internal/prefs"
	"github.com/five82/marquee/internal/query"
)

type fakeReads struct{}

func (fakeReads) Movies(context.Context) ([]api.Movie, error) { return nil, nil }
func (fakeReads) MovieSessions(context.Context, int64) ([]api.MovieSession, error) {
	return nil, nil
}
func (fakeReads) Cinemas(context.Context) ([]api.Cinema, error) { return nil, nil }
func (fakeReads) CinemaSessions(context.Context, int64) ([]api.MovieSession, error) {
	return nil, nil
}
func (fakeReads) Session(context.Context, int64) (api.MovieSessionDetails, error) {
	return api.MovieSessionDetails{}, &api.Error{Status: 404, Message: "not found"}
}
func (fakeReads) MyBookings(context.Context) ([]api.Booking, error) { return nil, nil }
func (fakeReads) Settings(context.Context) (api.Settings, error) {
	return api.Settings{BookingPaymentTimeSeconds: 180}, nil
}

type fakeMutator struct {
	mu       sync.Mutex
	booked   [][]api.Seat
	sessions []int64
	paid     []string
}

func (f *fakeMutator) BookSeats(_ context.Context, sessionID int64, seats []api.Seat) (mutation.BookingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionID)
	f.booked = append(f.booked, seats)
	return mutation.BookingResult{BookingID: "b-new", SessionID: sessionID, Seats: seats}, nil
}

func (f *fakeMutator) PayBooking(_ context.Context, id string) (mutation.PaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid = append(f.paid, id)
	return mutation.PaymentResult{BookingID: id}, nil
}

func (f *fakeMutator) InFlight(string) bool { return false }

type fakeAccount struct {
	signedIn bool
	logins   []auth.LoginForm
}

func (a *fakeAccount) IsAuthenticated() bool { return a.signedIn }
func (a *fakeAccount) Username() string      { return "moviegoer" }
func (a *fakeAccount) Login(_ context.Context, f auth.LoginForm) error {
	a.logins = append(a.logins, f)
	a.signedIn = true
	return nil
}
func (a *fakeAccount) Register(context.Context, auth.RegisterForm) error { return nil }
func (a *fakeAccount) Logout() error {
	a.signedIn = false
	return nil
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	model   Model
	store   *cache.Store
	mut     *fakeMutator
	account *fakeAccount
	notices *notify.Queue
}

func newHarness(t *testing.T, signedIn bool) *harness {
	t.Helper()
	store := cache.NewStore(cache.Options{Stale: query.DefaultStale(), Logger: logging.Discard()})
	t.Cleanup(store.Dispose)
	h := &harness{
		store:   store,
		mut:     &fakeMutator{},
		account: &fakeAccount{signedIn: signedIn},
		notices: notify.NewQueue(0),
	}
	h.model = New(Options{
		Query:     query.New(store, fakeReads{}),
		Mutations: h.mut,
		Account:   h.account,
		Notices:   h.notices,
		Prefs:     prefs.Default(),
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
		Location:  time.UTC,
		Logger:    logging.Discard(),
		Now:       func() time.Time { return testNow },
	})
	t.Cleanup(h.model.Close)
	h.send(tea.WindowSizeMsg{Width: 140, Height: 40})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		cmd = h.send(msg)
	}
	return cmd
}

func seedCatalog(store *cache.Store) {
	start := testNow.Add(6 * time.Hour).Format(time.RFC3339)
	store.Set(query.MoviesKey(), []api.Movie{
		{ID: 1, Title: "Low Rated", Rating: 5.2, LengthMinutes: 95},
		{ID: 2, Title: "Top Rated", Rating: 8.9, LengthMinutes: 130},
	})
	store.Set(query.CinemasKey(), []api.Cinema{{ID: 10, Name: "Odeon", Address: "Main St 1"}})
	store.Set(query.MovieSessionsKey(2), []api.MovieSession{{ID: 7, MovieID: 2, CinemaID: 10, StartTime: start}})
	store.Set(query.SessionKey(7), api.MovieSessionDetails{
		MovieSession: api.MovieSession{ID: 7, MovieID: 2, CinemaID: 10, StartTime: start},
		Seats:        api.SeatsLayout{Rows: 3, SeatsPerRow: 4},
		BookedSeats:  []api.Seat{{RowNumber: 1, SeatNumber: 2}},
	})
}

func TestBrowseAndBookSeats(t *testing.T) {
	h := newHarness(t, true)
	seedCatalog(h.store)

	if !strings.Contains(h.model.View(), "Top Rated") {
		t.Fatal("movies view should list cached movies")
	}

	h.press("j", "enter")
	if h.model.currentView != ViewSessions || h.model.sessions.id != 2 {
		t.Fatalf("view = %v, sessions = %#v", h.model.currentView, h.model.sessions)
	}
	if !strings.Contains(h.model.View(), "Odeon") {
		t.Fatal("sessions view should name the cinema")
	}

	h.press("enter")
	if h.model.currentView != ViewSeats || h.model.seatSession != 7 {
		t.Fatalf("view = %v, seat session = %d", h.model.currentView, h.model.seatSession)
	}

	// (1,1) free, (1,2) booked and ignored, (1,3) free.
	h.press("space", "l", "space", "l", "space")
	want := []api.Seat{{RowNumber: 1, SeatNumber: 1}, {RowNumber: 1, SeatNumber: 3}}
	if len(h.model.selected) != 2 || h.model.selected[0] != want[0] || h.model.selected[1] != want[1] {
		t.Fatalf("selected = %#v, want %#v", h.model.selected, want)
	}

	cmd := h.press("b")
	if cmd == nil {
		t.Fatal("booking should return a command")
	}
	h.send(cmd())
	if len(h.mut.booked) != 1 || h.mut.sessions[0] != 7 || len(h.mut.booked[0]) != 2 {
		t.Fatalf("mutator calls = %#v / %#v", h.mut.sessions, h.mut.booked)
	}
	if h.model.currentView != ViewTickets || len(h.model.selected) != 0 {
		t.Fatalf("after booking view = %v, selected = %v", h.model.currentView, h.model.selected)
	}
}

func TestBookingWhileSignedOutOpensSignIn(t *testing.T) {
	h := newHarness(t, false)
	seedCatalog(h.store)
	h.press("j", "enter", "enter", "space", "b")

	if h.model.modal == nil {
		t.Fatal("sign-in dialog should open")
	}
	if len(h.mut.booked) != 0 {
		t.Fatal("no booking may be sent while signed out")
	}
}

func TestSignInFlow(t *testing.T) {
	h := newHarness(t, false)
	h.press("L")
	if h.model.modal == nil {
		t.Fatal("L should open the sign-in dialog")
	}

	h.press("short", "tab", "Password1")
	if cmd := h.press("enter"); cmd != nil {
		t.Fatal("invalid form must not be submitted")
	}
	if !strings.Contains(h.model.View(), "Username must be at least 8 characters") {
		t.Fatal("local validation message should be shown")
	}

	h.press("tab") // back to username
	for range len("short") {
		h.send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	h.press("moviegoer", "tab")
	cmd := h.press("enter")
	if cmd == nil {
		t.Fatal("valid form should be submitted")
	}
	cmd = h.send(cmd()) // authSubmitMsg
	if cmd == nil {
		t.Fatal("submission should start sign-in")
	}
	h.send(cmd())

	if h.model.modal != nil {
		t.Fatal("dialog should close after sign-in")
	}
	if len(h.account.logins) != 1 || h.account.logins[0].Username != "moviegoer" {
		t.Fatalf("logins = %#v", h.account.logins)
	}
	if h.model.prefs.LastUsername != "moviegoer" {
		t.Fatalf("LastUsername = %q", h.model.prefs.LastUsername)
	}
	if h.notices.Len() != 1 {
		t.Fatalf("notices = %d, want 1", h.notices.Len())
	}
}

func TestTicketsGroupAndPay(t *testing.T) {
	h := newHarness(t, true)
	seedCatalog(h.store)
	past := testNow.Add(-48 * time.Hour).Format(time.RFC3339)
	h.store.Set(query.SessionKey(8), api.MovieSessionDetails{
		MovieSession: api.MovieSession{ID: 8, MovieID: 1, CinemaID: 10, StartTime: past},
		Seats:        api.SeatsLayout{Rows: 1, SeatsPerRow: 1},
	})
	h.store.Set(query.BookingsKey(), []api.Booking{
		{ID: "unpaid", MovieSessionID: 7, BookedAt: testNow.Add(-time.Minute).Format(time.RFC3339), Seats: []api.Seat{{RowNumber: 2, SeatNumber: 2}}},
		{ID: "old", MovieSessionID: 8, BookedAt: past, IsPaid: true, Seats: []api.Seat{{RowNumber: 1, SeatNumber: 1}}},
	})

	h.press("t")
	groups := h.model.ticketGroups()
	if len(groups.Unpaid) != 1 || len(groups.Past) != 1 || len(groups.Future) != 0 {
		t.Fatalf("groups = %#v", groups)
	}
	view := h.model.View()
	if !strings.Contains(view, "Top Rated") || !strings.Contains(view, "2:00") {
		t.Fatalf("tickets view should show the movie and a 2:00 countdown:\n%s", view)
	}

	cmd := h.press("p")
	if cmd == nil {
		t.Fatal("pay should return a command")
	}
	h.send(cmd())
	if len(h.mut.paid) != 1 || h.mut.paid[0] != "unpaid" {
		t.Fatalf("paid = %v", h.mut.paid)
	}

	h.press("tab", "tab")
	if h.model.category != derive.CategoryPast {
		t.Fatalf("category = %v, want past", h.model.category)
	}
	if cmd := h.press("p"); cmd != nil {
		t.Fatal("paid bookings cannot be paid again")
	}
}

func TestCountdownFollowsPaymentWindow(t *testing.T) {
	h := newHarness(t, true)
	seedCatalog(h.store)
	h.store.Set(query.BookingsKey(), []api.Booking{
		{ID: "unpaid", MovieSessionID: 7, BookedAt: testNow.Add(-time.Minute).Format(time.RFC3339), Seats: []api.Seat{{RowNumber: 2, SeatNumber: 2}}},
	})
	h.store.Set(query.SettingsKey(), api.Settings{BookingPaymentTimeSeconds: 180})

	h.press("t")
	h.send(tickMsg(testNow))
	if got := h.model.remaining(api.Booking{ID: "unpaid"}); got != "2:00" {
		t.Fatalf("countdown = %q, want 2:00", got)
	}

	h.store.Set(query.SettingsKey(), api.Settings{BookingPaymentTimeSeconds: 600})
	h.send(tickMsg(testNow))
	if got := h.model.remaining(api.Booking{ID: "unpaid"}); got != "9:00" {
		t.Fatalf("countdown after settings change = %q, want 9:00", got)
	}
	h.model.rt.mu.Lock()
	timer := h.model.rt.timers["unpaid"]
	h.model.rt.mu.Unlock()
	if timer == nil || !timer.IsRunning() {
		t.Fatal("countdown should keep running after the window changed")
	}
}

func TestSubscribesToVisibleKeysOnly(t *testing.T) {
	h := newHarness(t, true)
	seedCatalog(h.store)
	h.send(cacheMsg(query.MoviesKey()))

	subscribed := func() map[cache.Key]bool {
		h.model.rt.mu.Lock()
		defer h.model.rt.mu.Unlock()
		out := make(map[cache.Key]bool)
		for k := range h.model.rt.subs {
			out[k] = true
		}
		return out
	}

	if got := subscribed(); !got[query.MoviesKey()] || got[query.CinemasKey()] {
		t.Fatalf("movies view subscriptions = %v", got)
	}
	h.press("c")
	if got := subscribed(); got[query.MoviesKey()] || !got[query.CinemasKey()] {
		t.Fatalf("cinemas view subscriptions = %v", got)
	}

	h.model.Close()
	if got := subscribed(); len(got) != 0 {
		t.Fatalf("Close left subscriptions: %v", got)
	}
}

type countingReporter struct {
	next Reporter
	errs []error
}

func (r *countingReporter) Handle(err error) bool {
	r.errs = append(r.errs, err)
	return r.next.Handle(err)
}

func failRead(t *testing.T, store *cache.Store, key cache.Key, err error) {
	t.Helper()
	_, got := store.Load(context.Background(), key, func(context.Context) (any, error) { return nil, err })
	if got != err {
		t.Fatalf("Load(%s) err = %v, want %v", key, got, err)
	}
}

func TestExpiredTokenOnBookingsSignsOut(t *testing.T) {
	h := newHarness(t, true)
	rep := &countingReporter{next: apperr.NewHandler(h.notices, func() { _ = h.account.Logout() }, logging.Discard())}
	h.model.reporter = rep

	failRead(t, h.store, query.BookingsKey(), &api.Error{Status: 401, Message: "Token expired"})
	h.press("t")
	h.send(cacheMsg(query.BookingsKey()))

	if len(rep.errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(rep.errs))
	}
	if h.account.IsAuthenticated() {
		t.Fatal("401 on a watched read should sign out")
	}
	if h.notices.Len() == 0 {
		t.Fatal("auth failure should raise a notice")
	}
}

func TestWatchedReadFailuresReportedOnce(t *testing.T) {
	h := newHarness(t, true)
	rep := &countingReporter{next: apperr.NewHandler(h.notices, nil, logging.Discard())}
	h.model.reporter = rep

	network := &api.Error{Status: api.StatusNetwork, Message: "connection refused"}
	failRead(t, h.store, query.MoviesKey(), network)
	h.send(cacheMsg(query.MoviesKey()))
	h.send(cacheMsg(query.MoviesKey()))
	if len(rep.errs) != 1 {
		t.Fatalf("same failure reported %d times, want 1", len(rep.errs))
	}

	// Another failure of the same kind continues the outage.
	failRead(t, h.store, query.MoviesKey(), &api.Error{Status: api.StatusNetwork, Message: "connection reset"})
	h.send(cacheMsg(query.MoviesKey()))
	if len(rep.errs) != 1 {
		t.Fatalf("repeat outage reported %d times, want 1", len(rep.errs))
	}

	failRead(t, h.store, query.MoviesKey(), &api.Error{Status: 500, Message: "boom"})
	h.send(cacheMsg(query.MoviesKey()))
	if len(rep.errs) != 2 {
		t.Fatalf("new kind of failure reported %d times, want 2", len(rep.errs))
	}

	// Keys off screen are left to the view that shows them.
	failRead(t, h.store, query.CinemasKey(), network)
	h.send(cacheMsg(query.CinemasKey()))
	if len(rep.errs) != 2 {
		t.Fatalf("unwatched key reported, total %d", len(rep.errs))
	}
}

func TestToggleSeat(t *testing.T) {
	details := api.MovieSessionDetails{
		Seats:       api.SeatsLayout{Rows: 2, SeatsPerRow: 2},
		BookedSeats: []api.Seat{{RowNumber: 2, SeatNumber: 2}},
	}
	a := api.Seat{RowNumber: 1, SeatNumber: 1}

	sel := toggleSeat(nil, details, a)
	if len(sel) != 1 {
		t.Fatalf("select free seat: %v", sel)
	}
	if got := toggleSeat(sel, details, api.Seat{RowNumber: 2, SeatNumber: 2}); len(got) != 1 {
		t.Fatal("booked seat must not be selectable")
	}
	if got := toggleSeat(sel, details, api.Seat{RowNumber: 3, SeatNumber: 1}); len(got) != 1 {
		t.Fatal("seat outside the hall must not be selectable")
	}
	if got := toggleSeat(sel, details, a); len(got) != 0 || len(sel) != 1 {
		t.Fatalf("unselect = %v, original = %v", got, sel)
	}
}

func TestPruneToasts(t *testing.T) {
	var toasts []toast
	for i := range 5 {
		toasts = append(toasts, toast{notice: notify.Notice{Title: string(rune('a' + i))}, until: testNow.Add(time.Duration(i) * time.Second)})
	}
	got := pruneToasts(toasts, testNow.Add(500*time.Millisecond))
	if len(got) != MaxToasts || got[0].notice.Title != "c" || got[2].notice.Title != "e" {
		t.Fatalf("pruneToasts = %#v", got)
	}
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		cursor, total, height int
		start, end            int
	}{
		{0, 5, 10, 0, 5},
		{0, 20, 10, 0, 10},
		{10, 20, 10, 5, 15},
		{19, 20, 10, 10, 20},
	}
	for _, tt := range tests {
		start, end := visibleWindow(tt.cursor, tt.total, tt.height)
		if start != tt.start || end != tt.end {
			t.Errorf("visibleWindow(%d, %d, %d) = %d, %d; want %d, %d",
				tt.cursor, tt.total, tt.height, start, end, tt.start, tt.end)
		}
	}
}

func TestNextCategoryWraps(t *testing.T) {
	if got := nextCategory(derive.CategoryPast, 1); got != derive.CategoryUnpaid {
		t.Fatalf("next after past = %v", got)
	}
	if got := nextCategory(derive.CategoryUnpaid, -1); got != derive.CategoryPast {
		t.Fatalf("previous before unpaid = %v", got)
	}
}

func TestThemes(t *testing.T) {
	if got := NextTheme("Slate"); got != "Nightfox" {
		t.Fatalf("NextTheme(Slate) = %q", got)
	}
	if got := GetTheme("Unknown").Name; got != "Nightfox" {
		t.Fatalf("fallback theme = %q", got)
	}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, status := range []string{"free", "selected", "booked", "pending", "unpaid", "expired"} {
			if th.StatusColors[status] == "" {
				t.Errorf("theme %s lacks %q color", name, status)
			}
		}
	}
}
