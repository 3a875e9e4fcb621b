package api

import (
	"fmt"
	"net/http"
)

// StatusNetwork is the status reported when no HTTP response was received.
const StatusNetwork = 0

// Error is returned for every failed request. Status is the HTTP status code,
// or StatusNetwork when the request never produced a response.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status == StatusNetwork && e.Err != nil:
		return fmt.Sprintf("api: %s: %v", e.Message, e.Err)
	case e.Status == StatusNetwork:
		return "api: " + e.Message
	case e.Err != nil:
		return fmt.Sprintf("api: status %d: %s: %v", e.Status, e.Message, e.Err)
	default:
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode exposes the HTTP status to classifiers that do not import this package.
func (e *Error) StatusCode() int { return e.Status }

// Detail returns the server supplied message.
func (e *Error) Detail() string { return e.Message }

func invalidResponse(what string, err error) error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("invalid %s response", what),
		Err:     err,
	}
}
