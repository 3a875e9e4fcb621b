package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/five82/marquee/internal/api"
)

const (
	defaultTokenTTL = time.Hour
	defaultSecret   = "marquee-mock-secret"
)

// Options configure a Server. Store is required.
type Options struct {
	Store      *Store
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
	// Latency delays every response, to exercise loading states.
	Latency time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// Server serves the booking REST contract from a Store.
type Server struct {
	store   *Store
	tokens  tokens
	cost    int
	latency time.Duration
	logger  *slog.Logger
	router  chi.Router
	httpSrv *http.Server
}

type ctxKey struct{}

var validate = validator.New(validator.WithRequiredStructEnabled())

type credentials struct {
	Username string `json:"username" validate:"required,min=8,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// New constructs the server with base middleware and routes.
func New(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secret := opts.Secret
	if secret == "" {
		secret = defaultSecret
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		store:   opts.Store,
		tokens:  tokens{secret: []byte(secret), ttl: ttl, now: now},
		cost:    cost,
		latency: opts.Latency,
		logger:  logger,
		router:  r,
	}
	r.Use(s.logRequests)
	if s.latency > 0 {
		r.Use(s.delay)
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/settings", s.handleSettings)
	s.router.Post("/login", s.handleLogin)
	s.router.Post("/register", s.handleRegister)
	s.router.Get("/movies", s.handleMovies)
	s.router.Get("/movies/{id}/sessions", s.handleMovieSessions)
	s.router.Get("/cinemas", s.handleCinemas)
	s.router.Get("/cinemas/{id}/sessions", s.handleCinemaSessions)
	s.router.Get("/movieSessions/{id}", s.handleSession)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/movieSessions/{id}/bookings", s.handleBook)
		r.Get("/me/bookings", s.handleMyBookings)
		r.Post("/bookings/{id}/payments", s.handlePay)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		userID, err := s.tokens.verify(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Session expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKey{}).(int64)
	return id
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Settings{
		BookingPaymentTimeSeconds: int(s.store.PaymentTimeout() / time.Second),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id, hash, ok := s.store.User(creds.Username)
	if !ok || !checkPassword(hash, creds.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	s.issue(w, id, creds.Username, http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(creds); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password must be 8 to 64 characters")
		return
	}
	hash, err := hashPassword(creds.Password, s.cost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create account")
		return
	}
	id, err := s.store.Register(creds.Username, hash)
	if errors.Is(err, errUserExists) {
		writeError(w, http.StatusConflict, "Username is already taken")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create account")
		return
	}
	s.logger.Info("user registered", slog.String("username", creds.Username), slog.Int64("user_id", id))
	s.issue(w, id, creds.Username, http.StatusCreated)
}

func (s *Server) issue(w http.ResponseWriter, id int64, username string, status int) {
	token, err := s.tokens.sign(id, username)
	if err != nil {
		s.logger.Error("sign token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Could not sign in")
		return
	}
	writeJSON(w, status, api.AuthResponse{Token: token})
}

func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Movies())
}

func (s *Server) handleCinemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Cinemas())
}

func (s *Server) handleMovieSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.SessionsWhere(func(ms api.MovieSession) bool { return ms.MovieID == id }))
}

func (s *Server) handleCinemaSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.SessionsWhere(func(ms api.MovieSession) bool { return ms.CinemaID == id }))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	details, err := s.store.Session(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req api.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	bookingID, err := s.store.Book(userFrom(r), id, req.Seats, r.Header.Get("Idempotency-Key"))
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, errInvalidSeats):
		writeError(w, http.StatusBadRequest, "Invalid seat selection")
	case errors.Is(err, errSeatsTaken):
		writeError(w, http.StatusConflict, "Some of the selected seats are already booked")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Booking failed")
	default:
		s.logger.Info("seats booked", slog.Int64("session_id", id), slog.String("booking_id", bookingID), slog.Int("seats", len(req.Seats)))
		writeJSON(w, http.StatusCreated, api.BookingResponse{BookingID: bookingID})
	}
}

func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.BookingsOf(userFrom(r)))
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	err := s.store.Pay(userFrom(r), bookingID, r.Header.Get("Idempotency-Key"))
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "Booking not found or payment window expired")
	case errors.Is(err, errAlreadyPaid):
		writeError(w, http.StatusConflict, "This booking has already been paid")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Payment failed")
	default:
		s.logger.Info("booking paid", slog.String("booking_id", bookingID))
		writeJSON(w, http.StatusOK, api.PaymentResponse{Message: "Payment successful"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Message: msg})
}
