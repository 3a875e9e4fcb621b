package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/notify"
	"github.com/five82/marquee/internal/query"
)

// BookingResult is returned by a committed booking.
type BookingResult struct {
	BookingID string
	SessionID int64
	Seats     []api.Seat
}

// BookSeats reserves seats in a session. The seats are marked booked in the
// cached seat map before the request is sent and unmarked if it fails.
func (e *Engine) BookSeats(ctx context.Context, sessionID int64, seats []api.Seat) (BookingResult, error) {
	resource := BookingResource(sessionID)
	if err := checkSeatSelection(seats); err != nil {
		e.report(err)
		return BookingResult{}, err
	}
	if err := e.gate(resource); err != nil {
		return BookingResult{}, err
	}

	key := query.SessionKey(sessionID)
	e.advance(resource, StateSpeculating, nil)
	var session api.MovieSession
	spec, err := e.speculate(key, func(cur cache.Entry) (any, error) {
		details, ok := cur.Value.(api.MovieSessionDetails)
		if !cur.HasValue || !ok {
			return nil, cache.ErrSkip
		}
		session = details.MovieSession
		if err := checkSeatsAvailable(details, seats); err != nil {
			return nil, err
		}
		next := details
		next.BookedSeats = append(slices.Clone(details.BookedSeats), seats...)
		return next, nil
	}, nil)
	if err != nil {
		return BookingResult{}, e.fail(resource, nil, err)
	}

	e.advance(resource, StateInFlight, nil)
	idempotencyKey := e.newKey()
	var resp api.BookingResponse
	err = e.send(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.backend.BookSeats(ctx, sessionID, seats, idempotencyKey)
		return err
	})
	if err != nil {
		return BookingResult{}, e.fail(resource, spec, asConflict(err, apperr.ErrAlreadyBooked))
	}

	e.invalidateAfterBooking(sessionID, session)
	e.advance(resource, StateCommitted, nil)
	e.logger.Info("seats booked",
		slog.Int64("session_id", sessionID),
		slog.String("booking_id", resp.BookingID),
		slog.Int("seats", len(seats)))
	e.notifier.Notify(notify.Success("Seats booked!", "Pay for your tickets within the allotted time"))

	return BookingResult{BookingID: resp.BookingID, SessionID: sessionID, Seats: slices.Clone(seats)}, nil
}

// invalidateAfterBooking marks everything that shows the session's
// availability stale. When the session was not cached, all session lists
// are invalidated.
func (e *Engine) invalidateAfterBooking(sessionID int64, session api.MovieSession) {
	e.store.Invalidate(query.BookingsKey())
	e.store.Invalidate(query.SessionKey(sessionID))
	if session.ID == 0 {
		e.store.InvalidateMany(cache.InCollection(query.CollectionMovieSessions, query.CollectionCinemaSessions))
		return
	}
	e.store.Invalidate(query.MovieSessionsKey(session.MovieID))
	e.store.Invalidate(query.CinemaSessionsKey(session.CinemaID))
}

func checkSeatSelection(seats []api.Seat) error {
	if len(seats) == 0 {
		return apperr.New(apperr.KindValidation, "Select at least one seat")
	}
	seen := make(map[api.Seat]struct{}, len(seats))
	for _, s := range seats {
		if s.RowNumber <= 0 || s.SeatNumber <= 0 {
			return apperr.New(apperr.KindValidation, fmt.Sprintf("Invalid seat: row %d, seat %d", s.RowNumber, s.SeatNumber))
		}
		if _, dup := seen[s]; dup {
			return apperr.New(apperr.KindValidation, fmt.Sprintf("Seat selected twice: row %d, seat %d", s.RowNumber, s.SeatNumber))
		}
		seen[s] = struct{}{}
	}
	return nil
}

func checkSeatsAvailable(details api.MovieSessionDetails, seats []api.Seat) error {
	for _, s := range seats {
		if !details.Seats.Contains(s) {
			return apperr.New(apperr.KindValidation, fmt.Sprintf("Row %d, seat %d does not exist in this hall", s.RowNumber, s.SeatNumber))
		}
		if details.IsBooked(s) {
			return apperr.Wrap(apperr.ErrAlreadyBooked, fmt.Sprintf("Row %d, seat %d is already booked", s.RowNumber, s.SeatNumber), nil)
		}
	}
	return nil
}
