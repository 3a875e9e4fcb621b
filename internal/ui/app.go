package ui

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/auth"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/countdown"
	"github.com/five82/marquee/internal/derive"
	"github.com/five82/marquee/internal/mutation"
	"github.com/five82/marquee/internal/notify"
	"github.com/five82/marquee/internal/prefs"
	"github.com/five82/marquee/internal/query"
	"github.com/five82/marquee/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewMovies View = iota
	ViewCinemas
	ViewSessions
	ViewSeats
	ViewTickets
	ViewActivity
)

// Mutator runs booking and payment mutations.
type Mutator interface {
	BookSeats(ctx context.Context, sessionID int64, seats []api.Seat) (mutation.BookingResult, error)
	PayBooking(ctx context.Context, bookingID string) (mutation.PaymentResult, error)
	InFlight(resource string) bool
}

// Account is the signed-in user session.
type Account interface {
	IsAuthenticated() bool
	Username() string
	Login(ctx context.Context, form auth.LoginForm) error
	Register(ctx context.Context, form auth.RegisterForm) error
	Logout() error
}

// Reporter turns errors into notices.
type Reporter interface {
	Handle(err error) bool
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Query     *query.Client
	Mutations Mutator
	Account   Account
	Reporter  Reporter
	Notices   *notify.Queue
	Sync      *state.Store
	Prefs     prefs.Prefs
	PrefsPath string
	LogPath   string
	// PosterURL resolves a poster path against the API base URL.
	PosterURL func(path string) string
	Location  *time.Location
	Logger    *slog.Logger
	// Now overrides the clock used for countdowns and booking categories.
	Now func() time.Time
}

// sessionsSource says whose sessions the sessions view lists.
type sessionsSource struct {
	cinema bool
	id     int64
	title  string
}

// runtime holds state shared by every copy of the Model: subscriptions that
// keep on-screen cache entries alive, and the payment countdowns.
type runtime struct {
	mu       sync.Mutex
	subs     map[cache.Key]func()
	timers   map[string]*countdown.Timer
	failures map[cache.Key]readFailure
	index    *derive.Memo[*derive.Index]
}

// readFailure is the last fetch error reported for a watched key.
type readFailure struct {
	at   time.Time
	kind apperr.Kind
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	query     *query.Client
	mutations Mutator
	account   Account
	reporter  Reporter
	notices   *notify.Queue
	sync      *state.Store
	prefs     prefs.Prefs
	prefsPath string
	logPath   string
	posterURL func(string) string
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
	rt        *runtime

	// UI state
	keys        keyMap
	theme       Theme
	currentView View
	listView    View // movies or cinemas, where esc returns to
	width       int
	height      int
	ready       bool
	showHelp    bool
	modal       Modal

	// Data state
	syncSnap state.Snapshot
	toasts   []toast

	// Catalog state
	movieRow   int
	cinemaRow  int
	sessionRow int
	sessions   sessionsSource

	// Seat map state
	seatSession int64
	seatCursor  api.Seat
	selected    []api.Seat

	// Tickets state
	ticketRow int
	category  derive.Category

	// Activity state
	activityViewport viewport.Model
	activity         activityState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := opts.Prefs
	if p.Theme == "" {
		p = prefs.Default()
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	notices := opts.Notices
	if notices == nil {
		notices = notify.NewQueue(0)
	}

	m := Model{
		ctx:       ctx,
		query:     opts.Query,
		mutations: opts.Mutations,
		account:   opts.Account,
		reporter:  opts.Reporter,
		notices:   notices,
		sync:      opts.Sync,
		prefs:     p,
		prefsPath: prefsPath,
		logPath:   opts.LogPath,
		posterURL: opts.PosterURL,
		loc:       loc,
		logger:    logger,
		now:       now,
		rt: &runtime{
			subs:     make(map[cache.Key]func()),
			timers:   make(map[string]*countdown.Timer),
			failures: make(map[cache.Key]readFailure),
		},
		keys:     DefaultKeyMap(),
		theme:    GetTheme(p.Theme),
		listView: ViewMovies,
		category: derive.CategoryUnpaid,
		activity: newActivityState(),
	}
	switch p.StartView {
	case prefs.ViewCinemas:
		m.currentView, m.listView = ViewCinemas, ViewCinemas
	case prefs.ViewTickets:
		m.currentView = ViewTickets
	default:
		m.currentView = ViewMovies
	}
	if m.query != nil {
		m.rt.index = derive.NewMemo(m.query.Store(),
			cache.InCollection(query.CollectionMovies, query.CollectionCinemas, query.CollectionSessions, query.CollectionBookings),
			m.buildIndex)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	m.syncSubscriptions()
	cmds := []tea.Cmd{tickCmd(DefaultUIInterval)}
	if m.currentView == ViewTickets {
		cmds = append(cmds, m.loadTicketSessions())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.update(msg)
	next := model.(Model)
	next.syncSubscriptions()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeActivity()
		return m, nil

	case tickMsg:
		return m.handleTick(time.Time(msg))

	case cacheMsg:
		m.reportReadFailure(cache.Key(msg))
		m.clampRows()
		if m.currentView == ViewTickets && cache.Key(msg).Collection() == query.CollectionBookings {
			return m, m.loadTicketSessions()
		}
		return m, nil

	case bookedMsg:
		return m.handleBooked(msg)

	case paidMsg:
		return m.handlePaid(msg)

	case authDoneMsg:
		return m.handleAuthDone(msg)

	case activityMsg:
		m.handleActivity(msg)
		return m, nil

	case sessionsLoadedMsg:
		// Fetch failures surface through the watched session keys.
		if msg.err != nil {
			m.logger.Debug("ticket sessions not loaded", slog.Any("error", msg.err))
		}
		return m, nil
	}

	if m.modal != nil {
		return m.updateModal(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.modal != nil {
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		return m.updateModal(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Account):
		return m.toggleAccount()
	case key.Matches(msg, m.keys.Refresh):
		m.refreshView()
		return m, nil
	case key.Matches(msg, m.keys.ViewMovies):
		m.currentView, m.listView = ViewMovies, ViewMovies
		return m, nil
	case key.Matches(msg, m.keys.ViewCinemas):
		m.currentView, m.listView = ViewCinemas, ViewCinemas
		return m, nil
	case key.Matches(msg, m.keys.ViewTickets):
		m.currentView = ViewTickets
		return m, m.loadTicketSessions()
	case key.Matches(msg, m.keys.ViewActivity):
		m.currentView = ViewActivity
		return m, m.refreshActivity()
	case key.Matches(msg, m.keys.Back):
		m.back()
		return m, nil
	}

	switch m.currentView {
	case ViewMovies, ViewCinemas:
		return m.handleCatalogKey(msg)
	case ViewSessions:
		return m.handleSessionsKey(msg)
	case ViewSeats:
		return m.handleSeatsKey(msg)
	case ViewTickets:
		return m.handleTicketsKey(msg)
	case ViewActivity:
		return m.handleActivityKey(msg)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.Close()
	return m, tea.Quit
}

// Close releases subscriptions, countdowns and the derived index.
func (m Model) Close() {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	for k, unsub := range m.rt.subs {
		unsub()
		delete(m.rt.subs, k)
	}
	for id, t := range m.rt.timers {
		t.Stop()
		delete(m.rt.timers, id)
	}
	if m.rt.index != nil {
		m.rt.index.Close()
	}
}

// back returns to the previous level of the current navigation path.
func (m *Model) back() {
	switch m.currentView {
	case ViewSeats:
		m.currentView = ViewSessions
	case ViewSessions, ViewTickets, ViewActivity:
		m.currentView = m.listView
	}
}

func (m *Model) savePrefs() {
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "error", err)
	}
}

// refreshView invalidates every entry the current view shows.
func (m *Model) refreshView() {
	if m.query == nil {
		return
	}
	store := m.query.Store()
	for _, k := range m.activeKeys() {
		store.Invalidate(k)
	}
}

func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	for _, n := range m.notices.Drain() {
		m.toasts = append(m.toasts, toast{notice: n, until: now.Add(ToastLifetime)})
	}
	m.toasts = pruneToasts(m.toasts, now)
	if m.sync != nil {
		m.syncSnap = m.sync.Snapshot()
	}
	if m.currentView == ViewTickets {
		m.syncTimers()
	}

	cmds := []tea.Cmd{tickCmd(DefaultUIInterval)}
	if m.currentView == ViewActivity && m.activity.follow {
		cmds = append(cmds, m.refreshActivity())
	}
	return m, tea.Batch(cmds...)
}

// activeKeys lists the cache keys the current view reads.
func (m Model) activeKeys() []cache.Key {
	switch m.currentView {
	case ViewMovies:
		return []cache.Key{query.MoviesKey()}
	case ViewCinemas:
		return []cache.Key{query.CinemasKey()}
	case ViewSessions:
		keys := []cache.Key{query.MoviesKey(), query.CinemasKey()}
		if m.sessions.cinema {
			return append(keys, query.CinemaSessionsKey(m.sessions.id))
		}
		return append(keys, query.MovieSessionsKey(m.sessions.id))
	case ViewSeats:
		return []cache.Key{query.SessionKey(m.seatSession), query.MoviesKey(), query.CinemasKey()}
	case ViewTickets:
		keys := []cache.Key{query.BookingsKey(), query.SettingsKey(), query.MoviesKey(), query.CinemasKey()}
		if m.query != nil {
			if st := m.query.Bookings(); st.HasData {
				for _, id := range derive.SessionIDs(st.Data) {
					keys = append(keys, query.SessionKey(id))
				}
			}
		}
		return keys
	default:
		return nil
	}
}

// syncSubscriptions subscribes to the keys on screen and drops the rest, so
// background revalidation only refreshes what the user is looking at.
func (m Model) syncSubscriptions() {
	if m.query == nil {
		return
	}
	want := make(map[cache.Key]bool)
	for _, k := range m.activeKeys() {
		want[k] = true
	}
	store := m.query.Store()

	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	for k, unsub := range m.rt.subs {
		if !want[k] {
			unsub()
			delete(m.rt.subs, k)
		}
	}
	for k := range want {
		if _, ok := m.rt.subs[k]; !ok {
			m.rt.subs[k] = store.Subscribe(k, func(cache.Entry) {})
		}
	}
}

// reportReadFailure hands a failed fetch of a watched key to the reporter.
// Each failure is reported once, and a run of failures of the same kind on
// one key only once, except auth failures, which always go through so the
// session is torn down.
func (m Model) reportReadFailure(key cache.Key) {
	if m.query == nil || m.reporter == nil {
		return
	}
	m.rt.mu.Lock()
	_, watched := m.rt.subs[key]
	m.rt.mu.Unlock()
	if !watched {
		return
	}
	e, ok := m.query.Store().Peek(key)

	m.rt.mu.Lock()
	last, seen := m.rt.failures[key]
	if !ok || e.Err == nil {
		delete(m.rt.failures, key)
		m.rt.mu.Unlock()
		return
	}
	kind := apperr.KindOf(e.Err)
	if seen && last.at.Equal(e.ErrAt) {
		m.rt.mu.Unlock()
		return
	}
	m.rt.failures[key] = readFailure{at: e.ErrAt, kind: kind}
	m.rt.mu.Unlock()

	if seen && last.kind == kind && kind != apperr.KindAuth {
		return
	}
	m.reporter.Handle(e.Err)
}

// renderMain renders header, command bar, content and toasts.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	content := m.renderContent()
	if toasts := m.renderToasts(); toasts != "" {
		content = overlayBottom(content, toasts)
	}
	b.WriteString(content)
	return b.String()
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewMovies:
		return m.renderMovies()
	case ViewCinemas:
		return m.renderCinemas()
	case ViewSessions:
		return m.renderSessions()
	case ViewSeats:
		return m.renderSeats()
	case ViewTickets:
		return m.renderTickets()
	case ViewActivity:
		return m.renderActivity()
	default:
		return ""
	}
}

func (m Model) contentHeight() int {
	return max(m.height-chromeHeight, 3)
}

// Messages

type tickMsg time.Time

// cacheMsg reports that a cache entry changed.
type cacheMsg cache.Key

type sessionsLoadedMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the Bubble Tea program and forwards cache changes to it.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	if m.query != nil {
		// Store writes made from inside Update also land here, so the send
		// must not wait for the event loop.
		unwatch := m.query.Store().Watch(func(k cache.Key) {
			go p.Send(cacheMsg(k))
		})
		defer unwatch()
	}
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	return err
}
