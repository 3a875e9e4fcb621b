package mutation

import (
	"context"
	"log/slog"
	"slices"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/notify"
	"github.com/five82/marquee/internal/query"
)

// PaymentResult is returned by a committed payment.
type PaymentResult struct {
	BookingID string
	Message   string
}

// PayBooking pays for an unpaid booking. The booking is shown as paid in the
// cached list while the request is in flight.
func (e *Engine) PayBooking(ctx context.Context, bookingID string) (PaymentResult, error) {
	if bookingID == "" {
		err := apperr.New(apperr.KindValidation, "Booking id is required")
		e.report(err)
		return PaymentResult{}, err
	}
	resource := PaymentResource(bookingID)
	if err := e.gate(resource); err != nil {
		return PaymentResult{}, err
	}

	key := query.BookingsKey()
	e.advance(resource, StateSpeculating, nil)
	var sessionID int64
	spec, err := e.speculate(key, func(cur cache.Entry) (any, error) {
		bookings, ok := cur.Value.([]api.Booking)
		if !cur.HasValue || !ok {
			return nil, cache.ErrSkip
		}
		i := slices.IndexFunc(bookings, func(b api.Booking) bool { return b.ID == bookingID })
		if i < 0 {
			return nil, apperr.Wrap(apperr.ErrNotFound, "Booking not found", nil)
		}
		if bookings[i].IsPaid {
			return nil, apperr.Wrap(apperr.ErrAlreadyPaid, "This booking has already been paid", nil)
		}
		sessionID = bookings[i].MovieSessionID
		next := slices.Clone(bookings)
		next[i].IsPaid = true
		return next, nil
	}, markUnpaid(bookingID))
	if err != nil {
		return PaymentResult{}, e.fail(resource, nil, err)
	}

	e.advance(resource, StateInFlight, nil)
	idempotencyKey := e.newKey()
	var resp api.PaymentResponse
	err = e.send(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.backend.PayBooking(ctx, bookingID, idempotencyKey)
		return err
	})
	if err != nil {
		return PaymentResult{}, e.fail(resource, spec, asConflict(err, apperr.ErrAlreadyPaid))
	}

	e.store.Invalidate(key)
	if sessionID != 0 {
		e.store.Invalidate(query.SessionKey(sessionID))
	}
	e.advance(resource, StateCommitted, nil)
	e.logger.Info("booking paid", slog.String("booking_id", bookingID))
	e.notifier.Notify(notify.Success("Ticket paid!", "Thank you for your purchase"))

	return PaymentResult{BookingID: bookingID, Message: resp.Message}, nil
}

// markUnpaid reverses a speculative payment on whatever the bookings list
// holds now, leaving every other booking as it is.
func markUnpaid(bookingID string) cache.UpdateFunc {
	return func(cur cache.Entry) (any, error) {
		bookings, ok := cur.Value.([]api.Booking)
		if !cur.HasValue || !ok {
			return nil, cache.ErrSkip
		}
		i := slices.IndexFunc(bookings, func(b api.Booking) bool { return b.ID == bookingID })
		if i < 0 || !bookings[i].IsPaid {
			return nil, cache.ErrSkip
		}
		next := slices.Clone(bookings)
		next[i].IsPaid = false
		return next, nil
	}
}
