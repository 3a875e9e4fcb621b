package query

import (
	"time"

	"github.com/five82/marquee/internal/cache"
)

// Collection names used as the first key segment.
const (
	CollectionMovies         = "movies"
	CollectionMovieSessions  = "movieSessions"
	CollectionCinemas        = "cinemas"
	CollectionCinemaSessions = "cinemaSessions"
	CollectionSessions       = "sessions"
	CollectionBookings       = "bookings"
	CollectionSettings       = "settings"
)

// DefaultPaymentTimeout applies when settings have not been loaded.
const DefaultPaymentTimeout = 180 * time.Second

// DefaultStale is the per-collection staleness policy. Bookings use the
// store's global default.
func DefaultStale() map[string]time.Duration {
	return map[string]time.Duration{
		CollectionSessions:       10 * time.Second,
		CollectionSettings:       5 * time.Minute,
		CollectionMovies:         5 * time.Minute,
		CollectionCinemas:        10 * time.Minute,
		CollectionMovieSessions:  30 * time.Second,
		CollectionCinemaSessions: 30 * time.Second,
	}
}

func MoviesKey() cache.Key   { return cache.NewKey(CollectionMovies) }
func CinemasKey() cache.Key  { return cache.NewKey(CollectionCinemas) }
func BookingsKey() cache.Key { return cache.NewKey(CollectionBookings) }
func SettingsKey() cache.Key { return cache.NewKey(CollectionSettings) }

func MovieSessionsKey(movieID int64) cache.Key {
	return cache.NewKey(CollectionMovieSessions, movieID)
}

func CinemaSessionsKey(cinemaID int64) cache.Key {
	return cache.NewKey(CollectionCinemaSessions, cinemaID)
}

// SessionKey addresses a session's details and seat map.
func SessionKey(sessionID int64) cache.Key {
	return cache.NewKey(CollectionSessions, sessionID)
}

// UserData matches every entry that belongs to the signed-in user.
var UserData = cache.InCollection(CollectionBookings)
