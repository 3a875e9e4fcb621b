package apperr

import (
	"errors"
	"log/slog"

	"github.com/five82/marquee/internal/notify"
)

// Describe builds the notice shown for err.
func Describe(err error) notify.Notice {
	kind := KindOf(err)
	msg := Message(err)
	n := notify.Notice{Level: notify.LevelError}

	switch kind {
	case KindValidation:
		n.Title, n.Icon = "Validation error", "alert-circle"
		n.Description = orDefault(msg, "Check the entered data")
	case KindAuth:
		n.Title, n.Icon = "Authorization error", "lock"
		n.Description = orDefault(msg, "Invalid username or password")
	case KindForbidden:
		n.Title, n.Icon = "Access denied", "shield-alert"
		n.Description = orDefault(msg, "You are not allowed to do this")
	case KindNotFound:
		n.Title, n.Icon = "Not found", "search-x"
		n.Description = orDefault(msg, "The requested resource was not found")
	case KindConflict:
		n.Title, n.Icon = "Conflict", "alert-triangle"
		n.Description = orDefault(msg, "The operation conflicts with the current state")
	case KindRateLimited:
		n.Title, n.Icon = "Too many requests", "timer"
		n.Description = orDefault(msg, "Slow down and try again in a moment")
	case KindTimeout:
		n.Title, n.Icon = "Timeout", "timer"
		n.Description = orDefault(msg, "The server took too long to respond")
	case KindServer:
		n.Title, n.Icon = "Server error", "server-off"
		n.Description = orDefault(msg, "Internal server error. Try again later")
	case KindNetwork:
		n.Title, n.Icon = "Network error", "wifi-off"
		n.Description = "Could not reach the server. Check your connection and try again"
	default:
		n.Title, n.Icon = "Unknown error", "x-circle"
		n.Description = "Something went wrong"
	}
	return n
}

func orDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

// Handler is the central sink for errors that are not resolved locally.
type Handler struct {
	notifier      notify.Notifier
	onAuthFailure func()
	logger        *slog.Logger
}

// NewHandler builds a Handler. onAuthFailure is invoked for authorization
// failures and should tear the session down.
func NewHandler(n notify.Notifier, onAuthFailure func(), logger *slog.Logger) *Handler {
	if n == nil {
		n = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{notifier: n, onAuthFailure: onAuthFailure, logger: logger}
}

// Handle reports err once. Cancelled requests are dropped silently. It
// returns whether a notice was emitted.
func (h *Handler) Handle(err error) bool {
	if err == nil {
		return false
	}
	kind := KindOf(err)
	if kind == KindCancelled {
		h.logger.Debug("request cancelled", slog.Any("error", err))
		return false
	}
	h.logger.Warn("operation failed", slog.String("kind", kind.String()), slog.Any("error", err))

	if kind == KindAuth && h.onAuthFailure != nil && !errors.Is(err, ErrNotSignedIn) {
		h.onAuthFailure()
	}
	h.notifier.Notify(Describe(err))
	return true
}
