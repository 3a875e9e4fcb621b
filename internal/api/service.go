package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service exposes the backend endpoints with validated, typed responses.
type Service struct {
	r Requester
}

// NewService wraps a Requester.
func NewService(r Requester) *Service {
	return &Service{r: r}
}

// Movies fetches GET /movies.
func (s *Service) Movies(ctx context.Context) ([]Movie, error) {
	var out []Movie
	if err := s.r.Get(ctx, "/movies", &out); err != nil {
		return nil, err
	}
	if err := validateAll("movies", out); err != nil {
		return nil, err
	}
	return out, nil
}

// MovieSessions fetches GET /movies/{id}/sessions.
func (s *Service) MovieSessions(ctx context.Context, movieID int64) ([]MovieSession, error) {
	var out []MovieSession
	if err := s.r.Get(ctx, "/movies/"+strconv.FormatInt(movieID, 10)+"/sessions", &out); err != nil {
		return nil, err
	}
	if err := validateAll("movie sessions", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cinemas fetches GET /cinemas.
func (s *Service) Cinemas(ctx context.Context) ([]Cinema, error) {
	var out []Cinema
	if err := s.r.Get(ctx, "/cinemas", &out); err != nil {
		return nil, err
	}
	if err := validateAll("cinemas", out); err != nil {
		return nil, err
	}
	return out, nil
}

// CinemaSessions fetches GET /cinemas/{id}/sessions.
func (s *Service) CinemaSessions(ctx context.Context, cinemaID int64) ([]MovieSession, error) {
	var out []MovieSession
	if err := s.r.Get(ctx, "/cinemas/"+strconv.FormatInt(cinemaID, 10)+"/sessions", &out); err != nil {
		return nil, err
	}
	if err := validateAll("cinema sessions", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session fetches GET /movieSessions/{id} including the seat map.
func (s *Service) Session(ctx context.Context, sessionID int64) (MovieSessionDetails, error) {
	var out MovieSessionDetails
	if err := s.r.Get(ctx, sessionPath(sessionID), &out); err != nil {
		return MovieSessionDetails{}, err
	}
	if err := validate.Struct(out); err != nil {
		return MovieSessionDetails{}, invalidResponse("session details", err)
	}
	return out, nil
}

// BookSeats posts to /movieSessions/{id}/bookings.
func (s *Service) BookSeats(ctx context.Context, sessionID int64, seats []Seat, idempotencyKey string) (BookingResponse, error) {
	var out BookingResponse
	body := BookingRequest{Seats: seats}
	if err := s.r.Post(ctx, sessionPath(sessionID)+"/bookings", body, &out, WithIdempotencyKey(idempotencyKey)); err != nil {
		return BookingResponse{}, err
	}
	if err := validate.Struct(out); err != nil {
		return BookingResponse{}, invalidResponse("booking", err)
	}
	return out, nil
}

// MyBookings fetches GET /me/bookings.
func (s *Service) MyBookings(ctx context.Context) ([]Booking, error) {
	var out []Booking
	if err := s.r.Get(ctx, "/me/bookings", &out); err != nil {
		return nil, err
	}
	if err := validateAll("bookings", out); err != nil {
		return nil, err
	}
	return out, nil
}

// PayBooking posts to /bookings/{id}/payments.
func (s *Service) PayBooking(ctx context.Context, bookingID, idempotencyKey string) (PaymentResponse, error) {
	var out PaymentResponse
	path := "/bookings/" + url.PathEscape(bookingID) + "/payments"
	if err := s.r.Post(ctx, path, struct{}{}, &out, WithIdempotencyKey(idempotencyKey)); err != nil {
		return PaymentResponse{}, err
	}
	return out, nil
}

// Settings fetches GET /settings.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	var out Settings
	if err := s.r.Get(ctx, "/settings", &out); err != nil {
		return Settings{}, err
	}
	if err := validate.Struct(out); err != nil {
		return Settings{}, invalidResponse("settings", err)
	}
	return out, nil
}

// Login posts credentials to /login.
func (s *Service) Login(ctx context.Context, creds Credentials) (AuthResponse, error) {
	return s.authenticate(ctx, "/login", creds)
}

// Register posts credentials to /register.
func (s *Service) Register(ctx context.Context, creds Credentials) (AuthResponse, error) {
	return s.authenticate(ctx, "/register", creds)
}

func (s *Service) authenticate(ctx context.Context, path string, creds Credentials) (AuthResponse, error) {
	var out AuthResponse
	if err := s.r.Post(ctx, path, creds, &out); err != nil {
		return AuthResponse{}, err
	}
	if err := validate.Struct(out); err != nil {
		return AuthResponse{}, invalidResponse("auth", err)
	}
	return out, nil
}

func sessionPath(id int64) string {
	return "/movieSessions/" + strconv.FormatInt(id, 10)
}

func validateAll[T any](what string, items []T) error {
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return invalidResponse(what, fmt.Errorf("item %d: %w", i, err))
		}
	}
	return nil
}
