package derive

import (
	"slices"
	"time"

	"github.com/five82/marquee/internal/api"
)

// Category buckets a booking for the tickets view.
type Category int

const (
	CategoryUnpaid Category = iota
	CategoryFuture
	CategoryPast
)

// Categories lists every category in display order.
var Categories = []Category{CategoryUnpaid, CategoryFuture, CategoryPast}

func (c Category) String() string {
	switch c {
	case CategoryUnpaid:
		return "Unpaid"
	case CategoryFuture:
		return "Upcoming"
	case CategoryPast:
		return "Past"
	default:
		return "Unknown"
	}
}

// CategoryOf classifies a booking. Unpaid bookings are always unpaid; a paid
// booking whose session is unknown counts as upcoming.
func CategoryOf(b api.Booking, session api.MovieSession, found bool, now time.Time) Category {
	if !b.IsPaid {
		return CategoryUnpaid
	}
	if !found {
		return CategoryFuture
	}
	if session.Start().After(now) {
		return CategoryFuture
	}
	return CategoryPast
}

// SessionLookup resolves the session of a booking.
type SessionLookup func(api.Booking) (api.MovieSession, bool)

// BookingGroups is the partition produced by GroupBookings.
type BookingGroups struct {
	Unpaid []api.Booking
	Future []api.Booking
	Past   []api.Booking
}

// Get returns the bookings of one category.
func (g BookingGroups) Get(c Category) []api.Booking {
	switch c {
	case CategoryUnpaid:
		return g.Unpaid
	case CategoryFuture:
		return g.Future
	case CategoryPast:
		return g.Past
	default:
		return nil
	}
}

// Len returns the total number of bookings.
func (g BookingGroups) Len() int {
	return len(g.Unpaid) + len(g.Future) + len(g.Past)
}

// GroupBookings partitions bookings into categories. Every booking lands in
// exactly one group. Each group is ordered by session start, latest first,
// falling back to booking time when either session is unknown.
func GroupBookings(bookings []api.Booking, lookup SessionLookup, now time.Time) BookingGroups {
	if lookup == nil {
		lookup = func(api.Booking) (api.MovieSession, bool) { return api.MovieSession{}, false }
	}
	var g BookingGroups
	for _, b := range bookings {
		s, ok := lookup(b)
		switch CategoryOf(b, s, ok, now) {
		case CategoryUnpaid:
			g.Unpaid = append(g.Unpaid, b)
		case CategoryFuture:
			g.Future = append(g.Future, b)
		default:
			g.Past = append(g.Past, b)
		}
	}

	newestFirst := func(a, b api.Booking) int {
		sa, okA := lookup(a)
		sb, okB := lookup(b)
		if okA && okB {
			return sb.Start().Compare(sa.Start())
		}
		return b.BookedTime().Compare(a.BookedTime())
	}
	slices.SortStableFunc(g.Unpaid, newestFirst)
	slices.SortStableFunc(g.Future, newestFirst)
	slices.SortStableFunc(g.Past, newestFirst)
	return g
}
