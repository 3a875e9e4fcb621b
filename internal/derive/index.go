package derive

import (
	"slices"

	"github.com/five82/marquee/internal/api"
)

// Index joins bookings to their session, movie and cinema.
type Index struct {
	movies   map[int64]api.Movie
	cinemas  map[int64]api.Cinema
	sessions map[int64]api.MovieSession
}

// NewIndex builds an Index from whatever lists are currently loaded.
func NewIndex(movies []api.Movie, cinemas []api.Cinema, sessions []api.MovieSession) *Index {
	ix := &Index{
		movies:   make(map[int64]api.Movie, len(movies)),
		cinemas:  make(map[int64]api.Cinema, len(cinemas)),
		sessions: make(map[int64]api.MovieSession, len(sessions)),
	}
	for _, m := range movies {
		ix.movies[m.ID] = m
	}
	for _, c := range cinemas {
		ix.cinemas[c.ID] = c
	}
	for _, s := range sessions {
		ix.sessions[s.ID] = s
	}
	return ix
}

// Session returns the booking's session.
func (ix *Index) Session(b api.Booking) (api.MovieSession, bool) {
	s, ok := ix.sessions[b.MovieSessionID]
	return s, ok
}

// Movie returns the movie shown in the booking's session.
func (ix *Index) Movie(b api.Booking) (api.Movie, bool) {
	s, ok := ix.Session(b)
	if !ok {
		return api.Movie{}, false
	}
	m, ok := ix.movies[s.MovieID]
	return m, ok
}

// Cinema returns the cinema of the booking's session.
func (ix *Index) Cinema(b api.Booking) (api.Cinema, bool) {
	s, ok := ix.Session(b)
	if !ok {
		return api.Cinema{}, false
	}
	c, ok := ix.cinemas[s.CinemaID]
	return c, ok
}

// MovieByID looks up a movie.
func (ix *Index) MovieByID(id int64) (api.Movie, bool) {
	m, ok := ix.movies[id]
	return m, ok
}

// CinemaByID looks up a cinema.
func (ix *Index) CinemaByID(id int64) (api.Cinema, bool) {
	c, ok := ix.cinemas[id]
	return c, ok
}

// SessionIDs returns the distinct session ids referenced by bookings, sorted.
func SessionIDs(bookings []api.Booking) []int64 {
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.MovieSessionID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
