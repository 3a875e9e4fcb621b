package api

import (
	"time"
)

const backendTimestampLayout = "2006-01-02 15:04:05"

// Movie mirrors an entry of GET /movies.
type Movie struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Year          int     `json:"year"`
	LengthMinutes int     `json:"lengthMinutes"`
	PosterImage   string  `json:"posterImage"`
	Rating        float64 `json:"rating" validate:"gte=0,lte=10"`
}

// Cinema mirrors an entry of GET /cinemas.
type Cinema struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Seat identifies a seat by row and number within one session hall.
type Seat struct {
	RowNumber  int `json:"rowNumber" validate:"gt=0"`
	SeatNumber int `json:"seatNumber" validate:"gt=0"`
}

// SeatsLayout describes the rectangular hall of a session.
type SeatsLayout struct {
	Rows        int `json:"rows" validate:"gt=0"`
	SeatsPerRow int `json:"seatsPerRow" validate:"gt=0"`
}

// Contains reports whether the seat lies inside the layout.
func (l SeatsLayout) Contains(s Seat) bool {
	return s.RowNumber >= 1 && s.RowNumber <= l.Rows &&
		s.SeatNumber >= 1 && s.SeatNumber <= l.SeatsPerRow
}

// MovieSession is a screening of a movie in a cinema.
type MovieSession struct {
	ID        int64  `json:"id"`
	MovieID   int64  `json:"movieId"`
	CinemaID  int64  `json:"cinemaId"`
	StartTime string `json:"startTime" validate:"required"`
}

// Start returns the parsed StartTime.
func (s MovieSession) Start() time.Time {
	return parseTime(s.StartTime)
}

// MovieSessionDetails mirrors GET /movieSessions/{id}.
type MovieSessionDetails struct {
	MovieSession
	Seats       SeatsLayout `json:"seats"`
	BookedSeats []Seat      `json:"bookedSeats" validate:"dive"`
}

// IsBooked reports whether the seat is already taken.
func (d MovieSessionDetails) IsBooked(seat Seat) bool {
	for _, s := range d.BookedSeats {
		if s == seat {
			return true
		}
	}
	return false
}

// Booking mirrors an entry of GET /me/bookings.
type Booking struct {
	ID             string `json:"id" validate:"required"`
	UserID         int64  `json:"userId"`
	MovieSessionID int64  `json:"movieSessionId"`
	BookedAt       string `json:"bookedAt" validate:"required"`
	Seats          []Seat `json:"seats" validate:"dive"`
	IsPaid         bool   `json:"isPaid"`
}

// BookedTime returns the parsed BookedAt timestamp.
func (b Booking) BookedTime() time.Time {
	return parseTime(b.BookedAt)
}

// Settings mirrors GET /settings.
type Settings struct {
	BookingPaymentTimeSeconds int `json:"bookingPaymentTimeSeconds" validate:"gte=0"`
}

// PaymentTimeout returns the payment window as a duration.
func (s Settings) PaymentTimeout() time.Duration {
	return time.Duration(s.BookingPaymentTimeSeconds) * time.Second
}

// BookingRequest is the body of POST /movieSessions/{id}/bookings.
type BookingRequest struct {
	Seats []Seat `json:"seats"`
}

// BookingResponse mirrors the reply to a seat booking.
type BookingResponse struct {
	BookingID string `json:"bookingId" validate:"required"`
}

// PaymentResponse mirrors the reply to a booking payment.
type PaymentResponse struct {
	Message string `json:"message"`
}

// Credentials is the body of POST /login and POST /register.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse mirrors the reply to login and register.
type AuthResponse struct {
	Token string `json:"token" validate:"required"`
}

// ErrorResponse is the error body returned by the backend.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(backendTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
