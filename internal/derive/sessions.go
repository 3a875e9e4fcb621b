package derive

import (
	"slices"
	"time"

	"github.com/five82/marquee/internal/api"
)

// DateGroup holds the sessions starting on one calendar day.
type DateGroup struct {
	Date     time.Time // midnight in the grouping location
	Label    string    // "dd.mm"
	Sessions []api.MovieSession
}

// SessionsByDate groups sessions by the calendar day of their start time in
// loc. Groups are ordered by date and sessions within a group by start time.
// Sessions with an unparseable start time are dropped.
func SessionsByDate(sessions []api.MovieSession, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[time.Time]*DateGroup)
	for _, s := range sessions {
		start := s.Start()
		if start.IsZero() {
			continue
		}
		start = start.In(loc)
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		g, ok := byDay[day]
		if !ok {
			g = &DateGroup{Date: day, Label: FormatDate(day)}
			byDay[day] = g
		}
		g.Sessions = append(g.Sessions, s)
	}

	out := make([]DateGroup, 0, len(byDay))
	for _, g := range byDay {
		slices.SortStableFunc(g.Sessions, func(a, b api.MovieSession) int {
			return a.Start().Compare(b.Start())
		})
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b DateGroup) int {
		return a.Date.Compare(b.Date)
	})
	return out
}
