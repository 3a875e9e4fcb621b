package mockapi

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/marquee/internal/api"
)

var (
	errNotFound     = errors.New("not found")
	errSeatsTaken   = errors.New("seats already booked")
	errInvalidSeats = errors.New("invalid seats")
	errAlreadyPaid  = errors.New("already paid")
	errUserExists   = errors.New("user exists")
)

type session struct {
	api.MovieSession
	layout api.SeatsLayout
}

type user struct {
	id       int64
	username string
	hash     []byte
}

type booking struct {
	api.Booking
	bookedAt time.Time
	key      string // idempotency key of the request that created it
}

// Store is the in-memory state of the mock backend. All methods are safe
// for concurrent use.
type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	payTimeout time.Duration

	movies   []api.Movie
	cinemas  []api.Cinema
	sessions map[int64]*session
	users    map[string]*user
	bookings map[string]*booking
	payments map[string]string // idempotency key -> booking id
	nextUser int64
}

// NewStore returns an empty store. Unpaid bookings older than payTimeout are
// released.
func NewStore(payTimeout time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:        now,
		payTimeout: payTimeout,
		sessions:   make(map[int64]*session),
		users:      make(map[string]*user),
		bookings:   make(map[string]*booking),
		payments:   make(map[string]string),
		nextUser:   1,
	}
}

// AddMovie registers a movie.
func (s *Store) AddMovie(m api.Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies = append(s.movies, m)
}

// AddCinema registers a cinema.
func (s *Store) AddCinema(c api.Cinema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cinemas = append(s.cinemas, c)
}

// AddSession registers a screening with its hall layout.
func (s *Store) AddSession(ms api.MovieSession, layout api.SeatsLayout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[ms.ID] = &session{MovieSession: ms, layout: layout}
}

// PaymentTimeout returns the payment window for new bookings.
func (s *Store) PaymentTimeout() time.Duration {
	return s.payTimeout
}

func (s *Store) Movies() []api.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.movies)
}

func (s *Store) Cinemas() []api.Cinema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cinemas)
}

// SessionsWhere lists the sessions matching keep, earliest first.
func (s *Store) SessionsWhere(keep func(api.MovieSession) bool) []api.MovieSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.MovieSession{}
	for _, ss := range s.sessions {
		if keep(ss.MovieSession) {
			out = append(out, ss.MovieSession)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime == out[j].StartTime {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// Session returns a session with the seats held by live bookings.
func (s *Store) Session(id int64) (api.MovieSessionDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	ss, ok := s.sessions[id]
	if !ok {
		return api.MovieSessionDetails{}, errNotFound
	}
	return api.MovieSessionDetails{
		MovieSession: ss.MovieSession,
		Seats:        ss.layout,
		BookedSeats:  s.bookedLocked(id),
	}, nil
}

func (s *Store) bookedLocked(sessionID int64) []api.Seat {
	out := []api.Seat{}
	for _, b := range s.bookings {
		if b.MovieSessionID == sessionID {
			out = append(out, b.Seats...)
		}
	}
	slices.SortFunc(out, func(a, b api.Seat) int {
		if a.RowNumber != b.RowNumber {
			return a.RowNumber - b.RowNumber
		}
		return a.SeatNumber - b.SeatNumber
	})
	return out
}

// expireLocked releases unpaid bookings whose payment window has passed.
func (s *Store) expireLocked() {
	if s.payTimeout <= 0 {
		return
	}
	cutoff := s.now().Add(-s.payTimeout)
	for id, b := range s.bookings {
		if !b.IsPaid && b.bookedAt.Before(cutoff) {
			delete(s.bookings, id)
		}
	}
}

// Book reserves seats for a user. A repeated idempotency key returns the
// booking created by the first request.
func (s *Store) Book(userID, sessionID int64, seats []api.Seat, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	if key != "" {
		for id, b := range s.bookings {
			if b.key == key && b.UserID == userID {
				return id, nil
			}
		}
	}
	ss, ok := s.sessions[sessionID]
	if !ok {
		return "", errNotFound
	}
	if len(seats) == 0 {
		return "", errInvalidSeats
	}
	seen := make(map[api.Seat]bool, len(seats))
	for _, seat := range seats {
		if !ss.layout.Contains(seat) || seen[seat] {
			return "", errInvalidSeats
		}
		seen[seat] = true
	}
	for _, taken := range s.bookedLocked(sessionID) {
		if seen[taken] {
			return "", errSeatsTaken
		}
	}

	now := s.now().UTC()
	id := uuid.NewString()
	s.bookings[id] = &booking{
		Booking: api.Booking{
			ID:             id,
			UserID:         userID,
			MovieSessionID: sessionID,
			BookedAt:       now.Format(time.RFC3339),
			Seats:          slices.Clone(seats),
		},
		bookedAt: now,
		key:      key,
	}
	return id, nil
}

// BookingsOf lists a user's live bookings, newest first.
func (s *Store) BookingsOf(userID int64) []api.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	out := []api.Booking{}
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b.Booking)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookedAt == out[j].BookedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].BookedAt > out[j].BookedAt
	})
	return out
}

// Pay marks a booking paid. A repeated idempotency key succeeds again
// without changing anything.
func (s *Store) Pay(userID int64, bookingID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()

	if key != "" && s.payments[key] == bookingID {
		return nil
	}
	b, ok := s.bookings[bookingID]
	if !ok || b.UserID != userID {
		return errNotFound
	}
	if b.IsPaid {
		return errAlreadyPaid
	}
	b.IsPaid = true
	if key != "" {
		s.payments[key] = bookingID
	}
	return nil
}

// Register creates a user from an already hashed password.
func (s *Store) Register(username string, hash []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return 0, errUserExists
	}
	u := &user{id: s.nextUser, username: username, hash: hash}
	s.nextUser++
	s.users[username] = u
	return u.id, nil
}

// User looks up a user by name.
func (s *Store) User(username string) (id int64, hash []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return 0, nil, false
	}
	return u.id, u.hash, true
}
