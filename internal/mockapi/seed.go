package mockapi

import (
	"time"

	"github.com/five82/marquee/internal/api"
)

// Seed fills s with a small demo catalogue: sessions over the next three
// days at every cinema, plus one screening that already started.
func Seed(s *Store, now time.Time) {
	movies := []api.Movie{
		{ID: 1, Title: "The Night Projectionist", Description: "A projectionist finds a reel that was never shot.", Year: 2023, LengthMinutes: 118, PosterImage: "/static/posters/projectionist.jpg", Rating: 8.1},
		{ID: 2, Title: "Harbour Lights", Description: "Three sisters reopen their late father's seaside cinema.", Year: 2022, LengthMinutes: 104, PosterImage: "/static/posters/harbour.jpg", Rating: 7.4},
		{ID: 3, Title: "Orbit of Glass", Description: "A station engineer races a slow-motion collision.", Year: 2024, LengthMinutes: 141, PosterImage: "/static/posters/orbit.jpg", Rating: 8.7},
		{ID: 4, Title: "Paper Tigers", Description: "A heist comedy set in a stationery warehouse.", Year: 2021, LengthMinutes: 96, PosterImage: "/static/posters/tigers.jpg", Rating: 6.3},
	}
	cinemas := []api.Cinema{
		{ID: 1, Name: "Grand Palace", Address: "12 Market Square"},
		{ID: 2, Name: "Lumiere Studio", Address: "4 River Lane"},
	}
	layouts := map[int64]api.SeatsLayout{
		1: {Rows: 8, SeatsPerRow: 12},
		2: {Rows: 5, SeatsPerRow: 8},
	}

	for _, m := range movies {
		s.AddMovie(m)
	}
	for _, c := range cinemas {
		s.AddCinema(c)
	}

	day := now.Truncate(24 * time.Hour)
	slots := []time.Duration{14 * time.Hour, 17*time.Hour + 30*time.Minute, 21 * time.Hour}
	id := int64(1)
	for d := range 3 {
		for ci, c := range cinemas {
			for si, slot := range slots {
				movie := movies[(d+ci+si)%len(movies)]
				start := day.Add(time.Duration(d)*24*time.Hour + slot)
				if !start.After(now) {
					continue
				}
				s.AddSession(api.MovieSession{
					ID:        id,
					MovieID:   movie.ID,
					CinemaID:  c.ID,
					StartTime: start.UTC().Format(time.RFC3339),
				}, layouts[c.ID])
				id++
			}
		}
	}
	s.AddSession(api.MovieSession{
		ID:        id,
		MovieID:   movies[0].ID,
		CinemaID:  cinemas[0].ID,
		StartTime: now.Add(-3 * time.Hour).UTC().Format(time.RFC3339),
	}, layouts[cinemas[0].ID])
}
