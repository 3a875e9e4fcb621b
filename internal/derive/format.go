package derive

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/five82/marquee/internal/api"
)

// FormatDuration renders minutes as "h:mm".
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// FormatDate renders the day and month as "dd.mm".
func FormatDate(t time.Time) string {
	return t.Format("02.01")
}

// FormatTime renders "hh:mm".
func FormatTime(t time.Time) string {
	return t.Format("15:04")
}

// FormatDateTime renders "dd.mm hh:mm".
func FormatDateTime(t time.Time) string {
	return FormatDate(t) + " " + FormatTime(t)
}

// SeatLabel names a seat for display.
func SeatLabel(s api.Seat) string {
	return fmt.Sprintf("Row %d, seat %d", s.RowNumber, s.SeatNumber)
}

// SortSeats returns a copy ordered by row, then seat number.
func SortSeats(seats []api.Seat) []api.Seat {
	out := slices.Clone(seats)
	slices.SortFunc(out, func(a, b api.Seat) int {
		if c := cmp.Compare(a.RowNumber, b.RowNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.SeatNumber, b.SeatNumber)
	})
	return out
}
