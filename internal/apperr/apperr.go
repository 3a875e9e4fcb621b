// Package apperr defines the error taxonomy surfaced to the UI and the
// central handler that turns errors into user notifications.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies an error for presentation and retry decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindTimeout
	KindServer
	KindNetwork
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a domain error. Code narrows a Kind (for example "already_booked"
// within KindConflict); sentinels compare by Code when set and by Kind
// otherwise, so errors.Is(err, ErrConflict) matches every conflict.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is implements sentinel matching.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Kind == e.Kind
}

// Kind sentinels.
var (
	ErrValidation  = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrAuth        = &Error{Kind: KindAuth, Message: "authentication required"}
	ErrForbidden   = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound    = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict    = &Error{Kind: KindConflict, Message: "conflict"}
	ErrRateLimited = &Error{Kind: KindRateLimited, Message: "too many requests"}
	ErrTimeout     = &Error{Kind: KindTimeout, Message: "request timeout"}
	ErrServer      = &Error{Kind: KindServer, Message: "server error"}
	ErrNetwork     = &Error{Kind: KindNetwork, Message: "network unavailable"}
)

// Conflict sentinels.
var (
	ErrAlreadyBooked       = &Error{Kind: KindConflict, Code: "already_booked", Message: "seats already booked"}
	ErrAlreadyPaid         = &Error{Kind: KindConflict, Code: "already_paid", Message: "booking already paid"}
	ErrOperationInProgress = &Error{Kind: KindConflict, Code: "in_progress", Message: "operation in progress"}
)

// ErrNotSignedIn is raised before any request when an operation needs a
// session and none exists; there is nothing to tear down for it.
var ErrNotSignedIn = &Error{Kind: KindAuth, Code: "not_signed_in", Message: "Sign in to continue"}

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap narrows sentinel to a concrete error carrying a message and cause.
func Wrap(sentinel *Error, msg string, cause error) *Error {
	if msg == "" {
		msg = sentinel.Message
	}
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: msg, Err: cause}
}

type statusCoder interface {
	StatusCode() int
}

type detailer interface {
	Detail() string
}

// KindOf classifies any error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return KindFromStatus(sc.StatusCode())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}

// KindFromStatus maps an HTTP status to a Kind. Status 0 means no response.
func KindFromStatus(status int) Kind {
	switch {
	case status == 0:
		return KindNetwork
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

// Message returns the most specific human message carried by err: a domain
// message, then a server supplied detail, then err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	var d detailer
	if errors.As(err, &d) && d.Detail() != "" {
		return d.Detail()
	}
	return err.Error()
}

// IsCancelled reports whether err stems from a cancelled or superseded request.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
