package mockapi_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/auth"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/derive"
	"github.com/five82/marquee/internal/logging"
	"github.com/five82/marquee/internal/mockapi"
	"github.com/five82/marquee/internal/mutation"
	"github.com/five82/marquee/internal/notify"
	"github.com/five82/marquee/internal/query"
)

// client is one signed-in user's view of the backend.
type client struct {
	account   *auth.Manager
	query     *query.Client
	mutations *mutation.Engine
	store     *cache.Store
	notices   *notify.Queue
}

func newClient(t *testing.T, baseURL string) *client {
	t.Helper()
	c := &client{notices: notify.NewQueue(0)}
	httpClient, err := api.NewClient(baseURL, api.WithTokenSource(api.TokenFunc(func() string { return c.account.Token() })))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	svc := api.NewService(httpClient)
	logger := logging.Discard()

	c.store = cache.NewStore(cache.Options{Stale: query.DefaultStale(), Logger: logger})
	t.Cleanup(c.store.Dispose)
	c.query = query.New(c.store, svc, query.WithLogger(logger))
	c.account = auth.NewManager(filepath.Join(t.TempDir(), "credentials.toml"), svc, auth.WithLogger(logger))
	c.account.OnLogout(func() { c.query.ClearUserData() })
	c.mutations = mutation.New(mutation.Options{
		Store:    c.store,
		Backend:  svc,
		Session:  c.account,
		Notifier: c.notices,
		Reporter: apperr.NewHandler(c.notices, func() { _ = c.account.Logout() }, logger),
		Logger:   logger,
	})
	return c
}

func startBackend(t *testing.T) (*httptest.Server, int64) {
	t.Helper()
	now := time.Now()
	store := mockapi.NewStore(3*time.Minute, nil)
	mockapi.Seed(store, now)
	srv := httptest.NewServer(mockapi.New(mockapi.Options{
		Store:      store,
		BcryptCost: bcrypt.MinCost,
		Logger:     logging.Discard(),
	}))
	t.Cleanup(srv.Close)

	upcoming := store.SessionsWhere(func(ms api.MovieSession) bool { return ms.Start().After(now) })
	if len(upcoming) == 0 {
		t.Fatal("seed produced no upcoming sessions")
	}
	return srv, upcoming[0].ID
}

func TestBookAndPayAgainstBackend(t *testing.T) {
	srv, sessionID := startBackend(t)
	ctx := context.Background()
	alice := newClient(t, srv.URL)

	if err := alice.account.Register(ctx, auth.RegisterForm{Username: "alice-smith", Password: "Password1", PasswordConfirmation: "Password1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := alice.query.RefreshSettings(ctx); err != nil {
		t.Fatalf("RefreshSettings: %v", err)
	}
	if got := alice.query.PaymentTimeout(); got != 3*time.Minute {
		t.Fatalf("PaymentTimeout = %v", got)
	}

	details, err := alice.query.LoadSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(details.BookedSeats) != 0 {
		t.Fatalf("fresh session has booked seats %v", details.BookedSeats)
	}

	seats := []api.Seat{{RowNumber: 2, SeatNumber: 4}, {RowNumber: 2, SeatNumber: 5}}
	res, err := alice.mutations.BookSeats(ctx, sessionID, seats)
	if err != nil {
		t.Fatalf("BookSeats: %v", err)
	}
	if res.BookingID == "" {
		t.Fatal("booking id missing")
	}
	if e, ok := alice.store.Peek(query.SessionKey(sessionID)); !ok || !e.Invalidated {
		t.Fatalf("session entry after commit = %#v, %v; want invalidated", e, ok)
	}

	details, err = alice.query.LoadSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("LoadSession after booking: %v", err)
	}
	if len(details.BookedSeats) != 2 {
		t.Fatalf("server seat map = %v", details.BookedSeats)
	}

	// The cached seat map now rejects the same seats without a request.
	if _, err := alice.mutations.BookSeats(ctx, sessionID, seats[:1]); !errors.Is(err, apperr.ErrAlreadyBooked) {
		t.Fatalf("rebook err = %v, want already booked", err)
	}

	bookings, err := alice.query.LoadBookings(ctx)
	if err != nil {
		t.Fatalf("LoadBookings: %v", err)
	}
	index := derive.NewIndex(nil, nil, []api.MovieSession{details.MovieSession})
	groups := derive.GroupBookings(bookings, index.Session, time.Now())
	if len(groups.Unpaid) != 1 || groups.Unpaid[0].ID != res.BookingID {
		t.Fatalf("groups = %#v", groups)
	}

	if _, err := alice.mutations.PayBooking(ctx, res.BookingID); err != nil {
		t.Fatalf("PayBooking: %v", err)
	}
	bookings, err = alice.query.LoadBookings(ctx)
	if err != nil {
		t.Fatalf("LoadBookings after payment: %v", err)
	}
	groups = derive.GroupBookings(bookings, index.Session, time.Now())
	if len(groups.Future) != 1 || len(groups.Unpaid) != 0 {
		t.Fatalf("groups after payment = %#v", groups)
	}
	if _, err := alice.mutations.PayBooking(ctx, res.BookingID); !errors.Is(err, apperr.ErrAlreadyPaid) {
		t.Fatalf("second payment err = %v, want already paid", err)
	}
}

func TestConcurrentBuyersConflict(t *testing.T) {
	srv, sessionID := startBackend(t)
	ctx := context.Background()
	alice, bob := newClient(t, srv.URL), newClient(t, srv.URL)
	for c, name := range map[*client]string{alice: "alice-smith", bob: "bob-jones1"} {
		if err := c.account.Register(ctx, auth.RegisterForm{Username: name, Password: "Password1", PasswordConfirmation: "Password1"}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	// Bob loads the seat map before Alice books.
	if _, err := bob.query.LoadSession(ctx, sessionID); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	seats := []api.Seat{{RowNumber: 1, SeatNumber: 1}}
	if _, err := alice.mutations.BookSeats(ctx, sessionID, seats); err != nil {
		t.Fatalf("alice BookSeats: %v", err)
	}

	_, err := bob.mutations.BookSeats(ctx, sessionID, seats)
	if !errors.Is(err, apperr.ErrAlreadyBooked) {
		t.Fatalf("bob err = %v, want already booked", err)
	}
	e, ok := bob.store.Peek(query.SessionKey(sessionID))
	if !ok {
		t.Fatal("bob's session entry vanished")
	}
	if got := e.Value.(api.MovieSessionDetails).BookedSeats; len(got) != 0 {
		t.Fatalf("rollback left speculative seats %v", got)
	}
	if bob.mutations.InFlight(mutation.BookingResource(sessionID)) {
		t.Fatal("resource still in flight after failure")
	}
}

func TestSignedOutBookingNeverReachesBackend(t *testing.T) {
	srv, sessionID := startBackend(t)
	c := newClient(t, srv.URL)

	_, err := c.mutations.BookSeats(context.Background(), sessionID, []api.Seat{{RowNumber: 1, SeatNumber: 1}})
	if !errors.Is(err, apperr.ErrNotSignedIn) {
		t.Fatalf("err = %v, want not signed in", err)
	}
	if c.notices.Len() != 1 {
		t.Fatalf("notices = %d, want 1", c.notices.Len())
	}
}
