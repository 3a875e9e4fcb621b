package mutation

import "fmt"

// State is the lifecycle position of a mutation on one resource.
type State int

const (
	StateIdle State = iota
	StateGuarding
	StateSpeculating
	StateInFlight
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGuarding:
		return "guarding"
	case StateSpeculating:
		return "speculating"
	case StateInFlight:
		return "in-flight"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s ends a mutation.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// Status is the latest known state of a resource.
type Status struct {
	State    State
	InFlight bool
	Err      error
}

// Transition is reported to the observer on every state change.
type Transition struct {
	Resource string
	From     State
	To       State
	Err      error
}

// BookingResource is the guard key for seat bookings on a session.
func BookingResource(sessionID int64) string {
	return fmt.Sprintf("booking:session:%d", sessionID)
}

// PaymentResource is the guard key for paying a booking.
func PaymentResource(bookingID string) string {
	return "payment:booking:" + bookingID
}
