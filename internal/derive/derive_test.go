package derive

import (
	"testing"
	"time"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/cache"
)

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatDuration(152), "2:32"},
		{FormatDuration(105), "1:45"},
		{FormatDuration(59), "0:59"},
		{FormatDuration(-5), "0:00"},
		{FormatDate(time.Date(2025, 7, 24, 15, 30, 0, 0, time.UTC)), "24.07"},
		{FormatTime(time.Date(2025, 7, 24, 9, 5, 0, 0, time.UTC)), "09:05"},
		{FormatDateTime(time.Date(2025, 7, 24, 15, 30, 0, 0, time.UTC)), "24.07 15:30"},
		{SeatLabel(api.Seat{RowNumber: 3, SeatNumber: 7}), "Row 3, seat 7"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSortSeats(t *testing.T) {
	in := []api.Seat{{RowNumber: 2, SeatNumber: 1}, {RowNumber: 1, SeatNumber: 5}, {RowNumber: 1, SeatNumber: 2}}
	got := SortSeats(in)
	want := []api.Seat{{RowNumber: 1, SeatNumber: 2}, {RowNumber: 1, SeatNumber: 5}, {RowNumber: 2, SeatNumber: 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortSeats = %v, want %v", got, want)
		}
	}
	if in[0].RowNumber != 2 {
		t.Fatal("SortSeats must not reorder its input")
	}
}

func TestSessionsByDate(t *testing.T) {
	sessions := []api.MovieSession{
		{ID: 1, StartTime: "2025-01-02T18:00:00Z"},
		{ID: 2, StartTime: "2024-12-31T21:00:00Z"},
		{ID: 3, StartTime: "2025-01-02T10:00:00Z"},
		{ID: 4, StartTime: "garbage"},
		{ID: 5, StartTime: "2024-12-31T09:30:00Z"},
	}
	groups := SessionsByDate(sessions, time.UTC)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	// Chronological, not lexicographic: "31.12" sorts after "02.01" as a string.
	if groups[0].Label != "31.12" || groups[1].Label != "02.01" {
		t.Fatalf("labels = %q, %q", groups[0].Label, groups[1].Label)
	}
	if groups[0].Sessions[0].ID != 5 || groups[0].Sessions[1].ID != 2 {
		t.Fatalf("first day order = %v", groups[0].Sessions)
	}
	if groups[1].Sessions[0].ID != 3 || groups[1].Sessions[1].ID != 1 {
		t.Fatalf("second day order = %v", groups[1].Sessions)
	}
}

func TestSessionsByDate_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	groups := SessionsByDate([]api.MovieSession{{ID: 1, StartTime: "2025-03-01T22:30:00Z"}}, loc)
	if len(groups) != 1 || groups[0].Label != "02.03" {
		t.Fatalf("groups = %#v, want day 02.03 in UTC+3", groups)
	}
}

func TestCategoryOf(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := api.MovieSession{StartTime: "2025-03-01T10:00:00Z"}
	future := api.MovieSession{StartTime: "2025-03-01T20:00:00Z"}

	tests := []struct {
		name    string
		booking api.Booking
		session api.MovieSession
		found   bool
		want    Category
	}{
		{"unpaid future", api.Booking{IsPaid: false}, future, true, CategoryUnpaid},
		{"unpaid past", api.Booking{IsPaid: false}, past, true, CategoryUnpaid},
		{"paid unknown session", api.Booking{IsPaid: true}, api.MovieSession{}, false, CategoryFuture},
		{"paid future", api.Booking{IsPaid: true}, future, true, CategoryFuture},
		{"paid past", api.Booking{IsPaid: true}, past, true, CategoryPast},
		{"paid starting now", api.Booking{IsPaid: true}, api.MovieSession{StartTime: "2025-03-01T12:00:00Z"}, true, CategoryPast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryOf(tt.booking, tt.session, tt.found, now); got != tt.want {
				t.Fatalf("CategoryOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupBookings_PartitionAndOrder(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := map[int64]api.MovieSession{
		1: {ID: 1, StartTime: "2025-02-20T18:00:00Z"},
		2: {ID: 2, StartTime: "2025-02-25T18:00:00Z"},
		3: {ID: 3, StartTime: "2025-03-05T18:00:00Z"},
		4: {ID: 4, StartTime: "2025-03-09T18:00:00Z"},
	}
	lookup := func(b api.Booking) (api.MovieSession, bool) {
		s, ok := sessions[b.MovieSessionID]
		return s, ok
	}
	bookings := []api.Booking{
		{ID: "a", MovieSessionID: 1, IsPaid: true, BookedAt: "2025-02-01T10:00:00Z"},
		{ID: "b", MovieSessionID: 2, IsPaid: true, BookedAt: "2025-02-02T10:00:00Z"},
		{ID: "c", MovieSessionID: 3, IsPaid: true, BookedAt: "2025-02-03T10:00:00Z"},
		{ID: "d", MovieSessionID: 4, IsPaid: true, BookedAt: "2025-02-04T10:00:00Z"},
		{ID: "e", MovieSessionID: 3, IsPaid: false, BookedAt: "2025-03-01T11:00:00Z"},
		{ID: "f", MovieSessionID: 99, IsPaid: false, BookedAt: "2025-03-01T11:30:00Z"},
		{ID: "g", MovieSessionID: 99, IsPaid: true, BookedAt: "2025-02-10T10:00:00Z"},
	}

	g := GroupBookings(bookings, lookup, now)
	if g.Len() != len(bookings) {
		t.Fatalf("partition lost bookings: %d of %d", g.Len(), len(bookings))
	}
	seen := map[string]int{}
	for _, c := range Categories {
		for _, b := range g.Get(c) {
			seen[b.ID]++
		}
	}
	for _, b := range bookings {
		if seen[b.ID] != 1 {
			t.Fatalf("booking %s appears %d times", b.ID, seen[b.ID])
		}
	}

	ids := func(bs []api.Booking) []string {
		out := make([]string, len(bs))
		for i, b := range bs {
			out[i] = b.ID
		}
		return out
	}
	if got := ids(g.Past); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("past = %v, want [b a]", got)
	}
	if got := ids(g.Unpaid); len(got) != 2 || got[0] != "f" || got[1] != "e" {
		t.Fatalf("unpaid = %v, want [f e]", got)
	}
	if got := ids(g.Future); len(got) != 3 {
		t.Fatalf("future = %v, want 3 bookings", got)
	}
}

func TestIndex(t *testing.T) {
	ix := NewIndex(
		[]api.Movie{{ID: 10, Title: "Heat"}},
		[]api.Cinema{{ID: 20, Name: "Aurora"}},
		[]api.MovieSession{{ID: 30, MovieID: 10, CinemaID: 20}, {ID: 31, MovieID: 11, CinemaID: 21}},
	)
	b := api.Booking{MovieSessionID: 30}
	if m, ok := ix.Movie(b); !ok || m.Title != "Heat" {
		t.Fatalf("Movie = %#v, %v", m, ok)
	}
	if c, ok := ix.Cinema(b); !ok || c.Name != "Aurora" {
		t.Fatalf("Cinema = %#v, %v", c, ok)
	}
	if _, ok := ix.Movie(api.Booking{MovieSessionID: 31}); ok {
		t.Fatal("unknown movie should be absent")
	}
	if _, ok := ix.Session(api.Booking{MovieSessionID: 99}); ok {
		t.Fatal("unknown session should be absent")
	}
	if got := SessionIDs([]api.Booking{{MovieSessionID: 3}, {MovieSessionID: 1}, {MovieSessionID: 3}}); len(got) != 2 || got[0] != 1 {
		t.Fatalf("SessionIDs = %v", got)
	}
}

func TestMemo_RecomputesOnlyAfterRelevantChange(t *testing.T) {
	store := cache.NewStore(cache.Options{})
	defer store.Dispose()

	key := cache.NewKey("bookings")
	store.Set(key, 1)
	computes := 0
	m := NewMemo(store, cache.InCollection("bookings"), func() int {
		computes++
		e, _ := store.Peek(key)
		return e.Value.(int) * 10
	})
	defer m.Close()

	if m.Get() != 10 || m.Get() != 10 || computes != 1 {
		t.Fatalf("computes = %d, want 1", computes)
	}
	store.Set(cache.NewKey("movies"), "x")
	m.Get()
	if computes != 1 {
		t.Fatalf("unrelated change recomputed, computes = %d", computes)
	}
	store.Set(key, 2)
	if got := m.Get(); got != 20 || computes != 2 {
		t.Fatalf("Get = %d computes = %d, want 20 and 2", got, computes)
	}
}
