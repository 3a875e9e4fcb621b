// Package mutation applies booking and payment writes optimistically to the
// shared store, reconciling with the server response by committing or
// rolling back.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/five82/marquee/internal/api"
	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/cache"
	"github.com/five82/marquee/internal/notify"
	"github.com/five82/marquee/internal/retry"
)

// Backend performs the server side of each mutation.
type Backend interface {
	BookSeats(ctx context.Context, sessionID int64, seats []api.Seat, idempotencyKey string) (api.BookingResponse, error)
	PayBooking(ctx context.Context, bookingID, idempotencyKey string) (api.PaymentResponse, error)
}

// Session reports whether a user is signed in.
type Session interface {
	IsAuthenticated() bool
}

// Reporter receives failures that are not conflicts.
type Reporter interface {
	Handle(err error) bool
}

// Options configure an Engine. Store and Backend are required.
type Options struct {
	Store    *cache.Store
	Backend  Backend
	Session  Session
	Notifier notify.Notifier
	Reporter Reporter
	Policy   *retry.Policy
	Logger   *slog.Logger
	// Observer, when set, sees every state transition.
	Observer func(Transition)
	// NewKey generates idempotency keys.
	NewKey func() string
}

// Engine runs optimistic mutations. At most one mutation per resource key is
// in flight at any time.
type Engine struct {
	store    *cache.Store
	backend  Backend
	session  Session
	notifier notify.Notifier
	reporter Reporter
	policy   retry.Policy
	logger   *slog.Logger
	observer func(Transition)
	newKey   func() string

	mu       sync.Mutex
	statuses map[string]Status
}

// New builds an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		store:    opts.Store,
		backend:  opts.Backend,
		session:  opts.Session,
		notifier: opts.Notifier,
		reporter: opts.Reporter,
		policy:   retry.Critical,
		logger:   opts.Logger,
		observer: opts.Observer,
		newKey:   opts.NewKey,
		statuses: make(map[string]Status),
	}
	if opts.Policy != nil {
		e.policy = *opts.Policy
	}
	if e.notifier == nil {
		e.notifier = notify.Discard
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.reporter == nil {
		e.reporter = apperr.NewHandler(e.notifier, nil, e.logger)
	}
	if e.newKey == nil {
		e.newKey = uuid.NewString
	}
	return e
}

// Status returns the last known state of resource.
func (e *Engine) Status(resource string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statuses[resource]
}

// InFlight reports whether a mutation holds the resource.
func (e *Engine) InFlight(resource string) bool {
	return e.Status(resource).InFlight
}

// acquire is the guard: one check-and-set under the engine lock.
func (e *Engine) acquire(resource string) bool {
	e.mu.Lock()
	st := e.statuses[resource]
	if st.InFlight {
		e.mu.Unlock()
		return false
	}
	e.statuses[resource] = Status{State: StateGuarding, InFlight: true}
	e.mu.Unlock()
	e.emit(Transition{Resource: resource, From: st.State, To: StateGuarding})
	return true
}

func (e *Engine) advance(resource string, to State, err error) {
	e.mu.Lock()
	from := e.statuses[resource].State
	e.statuses[resource] = Status{State: to, InFlight: !to.Terminal(), Err: err}
	e.mu.Unlock()
	e.emit(Transition{Resource: resource, From: from, To: to, Err: err})
}

func (e *Engine) emit(t Transition) {
	e.logger.Debug("mutation transition",
		slog.String("resource", t.Resource),
		slog.String("from", t.From.String()),
		slog.String("to", t.To.String()))
	if e.observer != nil {
		e.observer(t)
	}
}

// speculation remembers what a mutation wrote so it can be undone once.
type speculation struct {
	store   *cache.Store
	result  cache.UpdateResult
	undo    cache.UpdateFunc
	applied bool
}

// rollback restores the snapshot if the entry still holds the speculative
// value. When a newer write got there first, only this mutation's own change
// is reversed through undo, or the entry is invalidated when there is no
// undo. Calling it again is a no-op.
func (s *speculation) rollback() bool {
	if s == nil || !s.applied {
		return false
	}
	s.applied = false
	if s.store.Restore(s.result.Previous, s.result.Current.Version) {
		return true
	}
	key := s.result.Current.Key
	if s.undo == nil {
		s.store.Invalidate(key)
		return false
	}
	res, err := s.store.Update(key, s.undo)
	return err == nil && res.Changed
}

// speculate applies fn to key. undo, when set, reverses just this write on an
// entry that others have written since, and must return cache.ErrSkip when
// there is nothing left to reverse.
func (e *Engine) speculate(key cache.Key, fn, undo cache.UpdateFunc) (*speculation, error) {
	e.store.Cancel(key)
	res, err := e.store.Update(key, fn)
	if err != nil {
		return nil, err
	}
	return &speculation{store: e.store, result: res, undo: undo, applied: res.Changed}, nil
}

// fail finishes a mutation as rolled back and reports err exactly once.
func (e *Engine) fail(resource string, spec *speculation, err error) error {
	if spec.rollback() {
		e.logger.Debug("speculative write rolled back", slog.String("resource", resource))
	}
	e.advance(resource, StateRolledBack, err)
	e.report(err)
	return err
}

func (e *Engine) report(err error) {
	switch {
	case apperr.IsCancelled(err):
		e.logger.Debug("mutation cancelled", slog.Any("error", err))
	case errors.Is(err, apperr.ErrAlreadyBooked):
		e.notifier.Notify(conflictNotice("Seats unavailable", err, "Some of the selected seats are already taken"))
	case errors.Is(err, apperr.ErrAlreadyPaid):
		e.notifier.Notify(conflictNotice("Already paid", err, "This booking has already been paid"))
	case errors.Is(err, apperr.ErrOperationInProgress):
		e.notifier.Notify(conflictNotice("Please wait", err, "The previous request is still being processed"))
	default:
		e.reporter.Handle(err)
	}
}

func conflictNotice(title string, err error, fallback string) notify.Notice {
	desc := apperr.Message(err)
	if desc == "" {
		desc = fallback
	}
	return notify.Notice{Level: notify.LevelError, Title: title, Description: desc, Icon: "alert-triangle"}
}

// gate runs the local checks shared by every mutation: sign-in and the
// per-resource guard.
func (e *Engine) gate(resource string) error {
	if e.session != nil && !e.session.IsAuthenticated() {
		err := apperr.ErrNotSignedIn
		e.report(err)
		return err
	}
	if !e.acquire(resource) {
		err := apperr.Wrap(apperr.ErrOperationInProgress, "", nil)
		e.report(err)
		return err
	}
	return nil
}

// send runs the network call under the critical retry policy.
func (e *Engine) send(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, e.policy, fn)
}

// asConflict maps a server 409 onto the given conflict sentinel.
func asConflict(err error, sentinel *apperr.Error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return apperr.Wrap(sentinel, apiErr.Message, err)
	}
	return err
}
