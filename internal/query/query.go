// Package query exposes typed, cached reads of the booking backend.
package query

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/retry"
)

// Backend is the subset of api.Service used for reads.
type Backend interface {
	Movies(ctx context.Context) ([]api.Movie, error)
	MovieSessions(ctx context.Context, movieID int64) ([]api.MovieSession, error)
	Cinemas(ctx context.Context) ([]api.Cinema, error)
	CinemaSessions(ctx context.Context, cinemaID int64) ([]api.MovieSession, error)
	Session(ctx context.Context, sessionID int64) (api.MovieSessionDetails, error)
	MyBookings(ctx context.Context) ([]api.Booking, error)
	Settings(ctx context.Context) (api.Settings, error)
}

// State is what a view renders for one query.
type State[T any] struct {
	Data      T
	HasData   bool
	IsLoading bool
	Err       error
	UpdatedAt time.Time
}

// Client reads through the shared store.
type Client struct {
	store   *cache.Store
	backend Backend
	policy  retry.Policy
	logger  *slog.Logger
	// batchLimit bounds concurrent fetches in LoadSessions.
	batchLimit int
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the read retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a Client over store and backend.
func New(store *cache.Store, backend Backend, opts ...Option) *Client {
	c := &Client{
		store:      store,
		backend:    backend,
		policy:     retry.Default,
		logger:     slog.Default(),
		batchLimit: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Client) Store() *cache.Store { return c.store }

func fetcher[T any](c *Client, key cache.Key, fn func(context.Context) (T, error)) cache.FetchFunc {
	return func(ctx context.Context) (any, error) {
		var out T
		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Warn("query failed", slog.String("key", string(key)), slog.String("error", err.Error()))
			}
			return nil, err
		}
		return out, nil
	}
}

func read[T any](c *Client, key cache.Key, fn func(context.Context) (T, error)) State[T] {
	e, _ := c.store.Get(key, fetcher(c, key, fn))
	return stateOf[T](e)
}

func stateOf[T any](e cache.Entry) State[T] {
	st := State[T]{
		IsLoading: e.Fetching,
		Err:       e.Err,
		UpdatedAt: e.FetchedAt,
	}
	if v, ok := e.Value.(T); ok && e.HasValue {
		st.Data = v
		st.HasData = true
	}
	return st
}

func load[T any](ctx context.Context, c *Client, key cache.Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.store.Load(ctx, key, fetcher(c, key, fn))
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: unexpected cached type %T", key, v)
	}
	return out, nil
}

func (c *Client) fetchMovies(ctx context.Context) ([]api.Movie, error) {
	movies, err := c.backend.Movies(ctx)
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(movies)
	slices.SortStableFunc(sorted, func(a, b api.Movie) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	return sorted, nil
}

// Movies returns all movies ordered by rating, best first.
func (c *Client) Movies() State[[]api.Movie] {
	return read(c, MoviesKey(), c.fetchMovies)
}

// LoadMovies is the blocking form of Movies.
func (c *Client) LoadMovies(ctx context.Context) ([]api.Movie, error) {
	return load(ctx, c, MoviesKey(), c.fetchMovies)
}

// Movie looks a movie up in the cached list.
func (c *Client) Movie(id int64) (api.Movie, bool) {
	st := c.Movies()
	for _, m := range st.Data {
		if m.ID == id {
			return m, true
		}
	}
	return api.Movie{}, false
}

// MovieSessions returns the sessions of one movie.
func (c *Client) MovieSessions(movieID int64) State[[]api.MovieSession] {
	return read(c, MovieSessionsKey(movieID), func(ctx context.Context) ([]api.MovieSession, error) {
		return c.backend.MovieSessions(ctx, movieID)
	})
}

// Cinemas returns all cinemas.
func (c *Client) Cinemas() State[[]api.Cinema] {
	return read(c, CinemasKey(), c.backend.Cinemas)
}

// LoadCinemas is the blocking form of Cinemas.
func (c *Client) LoadCinemas(ctx context.Context) ([]api.Cinema, error) {
	return load(ctx, c, CinemasKey(), c.backend.Cinemas)
}

// Cinema looks a cinema up in the cached list.
func (c *Client) Cinema(id int64) (api.Cinema, bool) {
	for _, cn := range c.Cinemas().Data {
		if cn.ID == id {
			return cn, true
		}
	}
	return api.Cinema{}, false
}

// CinemaSessions returns the sessions of one cinema.
func (c *Client) CinemaSessions(cinemaID int64) State[[]api.MovieSession] {
	return read(c, CinemaSessionsKey(cinemaID), func(ctx context.Context) ([]api.MovieSession, error) {
		return c.backend.CinemaSessions(ctx, cinemaID)
	})
}

func (c *Client) sessionFetch(id int64) func(context.Context) (api.MovieSessionDetails, error) {
	return func(ctx context.Context) (api.MovieSessionDetails, error) {
		return c.backend.Session(ctx, id)
	}
}

// Session returns a session with its seat map.
func (c *Client) Session(sessionID int64) State[api.MovieSessionDetails] {
	return read(c, SessionKey(sessionID), c.sessionFetch(sessionID))
}

// LoadSession is the blocking form of Session.
func (c *Client) LoadSession(ctx context.Context, sessionID int64) (api.MovieSessionDetails, error) {
	return load(ctx, c, SessionKey(sessionID), c.sessionFetch(sessionID))
}

// LoadSessions fetches the details of every distinct session id
// concurrently. The first failure cancels the rest.
func (c *Client) LoadSessions(ctx context.Context, ids []int64) (map[int64]api.MovieSessionDetails, error) {
	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	var mu sync.Mutex
	out := make(map[int64]api.MovieSessionDetails, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchLimit)
	for _, id := range unique {
		g.Go(func() error {
			d, err := c.LoadSession(gctx, id)
			if err != nil {
				return fmt.Errorf("session %d: %w", id, err)
			}
			mu.Lock()
			out[id] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Bookings returns the signed-in user's bookings.
func (c *Client) Bookings() State[[]api.Booking] {
	return read(c, BookingsKey(), c.backend.MyBookings)
}

// LoadBookings is the blocking form of Bookings.
func (c *Client) LoadBookings(ctx context.Context) ([]api.Booking, error) {
	return load(ctx, c, BookingsKey(), c.backend.MyBookings)
}

// Settings returns the backend settings.
func (c *Client) Settings() State[api.Settings] {
	return read(c, SettingsKey(), c.backend.Settings)
}

// RefreshSettings fetches settings directly from the backend, bypassing
// staleness, and stores the result. It doubles as a connectivity probe.
func (c *Client) RefreshSettings(ctx context.Context) (api.Settings, error) {
	s, err := c.backend.Settings(ctx)
	if err != nil {
		return api.Settings{}, err
	}
	c.store.Set(SettingsKey(), s)
	return s, nil
}

// PaymentTimeout returns the configured payment window, or
// DefaultPaymentTimeout until settings are available.
func (c *Client) PaymentTimeout() time.Duration {
	st := c.Settings()
	if !st.HasData || st.Data.BookingPaymentTimeSeconds <= 0 {
		return DefaultPaymentTimeout
	}
	return st.Data.PaymentTimeout()
}

// ClearUserData drops every cached entry tied to the signed-in user.
func (c *Client) ClearUserData() int {
	return c.store.Remove(UserData)
}
