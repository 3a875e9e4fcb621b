package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc loads the value for a key. The context is cancelled when the
// fetch is superseded, the key is invalidated, or the store is disposed.
type FetchFunc func(ctx context.Context) (any, error)

var (
	// ErrSkip may be returned by an UpdateFunc to leave the entry unchanged.
	ErrSkip = errors.New("cache: skip update")
	// ErrDisposed is returned by Load after Dispose.
	ErrDisposed = errors.New("cache: store disposed")
	// ErrNoFetcher is returned by Load on a miss without a fetch function.
	ErrNoFetcher = errors.New("cache: miss without fetcher")
)

const (
	defaultStale         = time.Minute
	defaultRetention     = 5 * time.Minute
	defaultErrorCooldown = 5 * time.Second
)

// Options configure a Store.
type Options struct {
	// Stale maps a collection name to its staleness window. Collections not
	// listed use DefaultStale.
	Stale        map[string]time.Duration
	DefaultStale time.Duration
	// Retention is how long an entry without subscribers survives after its
	// last access.
	Retention time.Duration
	// SweepEvery is the janitor cadence started by Init. Zero uses Retention/2.
	SweepEvery time.Duration
	// ErrorCooldown delays automatic refetches from Get after a failed fetch.
	ErrorCooldown time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Entry is an immutable view of a cache entry. Value must be treated as
// read-only by every reader; writers replace it through Set or Update.
type Entry struct {
	Key         Key
	Value       any
	HasValue    bool
	FetchedAt   time.Time
	StaleAfter  time.Duration
	Invalidated bool
	Fetching    bool
	Err         error
	ErrAt       time.Time
	Version     uint64
}

// IsStale reports whether the entry should be refetched on next access.
func (e Entry) IsStale(now time.Time) bool {
	if !e.HasValue || e.Invalidated {
		return true
	}
	return now.Sub(e.FetchedAt) >= e.StaleAfter
}

type fetchCall struct {
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	value   any
	err     error
	applied bool
}

type entry struct {
	value       any
	hasValue    bool
	fetchedAt   time.Time
	invalidated bool
	err         error
	errAt       time.Time
	version     uint64

	// gen orders writes and fetch issues; a fetch only lands if gen has not
	// moved since it was issued.
	gen        uint64
	fetch      *fetchCall
	fetcher    FetchFunc
	subs       map[uint64]func(Entry)
	lastAccess time.Time
}

// Store is the keyed entity cache shared by queries and mutations.
type Store struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	watchers map[uint64]func(Key)
	nextID   uint64
	disposed bool

	stale         map[string]time.Duration
	defaultStale  time.Duration
	retention     time.Duration
	sweepEvery    time.Duration
	errorCooldown time.Duration
	now           func() time.Time
	logger        *slog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewStore builds a Store. Call Init to start eviction and Dispose to release it.
func NewStore(opts Options) *Store {
	s := &Store{
		entries:       make(map[Key]*entry),
		watchers:      make(map[uint64]func(Key)),
		stale:         make(map[string]time.Duration, len(opts.Stale)),
		defaultStale:  opts.DefaultStale,
		retention:     opts.Retention,
		sweepEvery:    opts.SweepEvery,
		errorCooldown: opts.ErrorCooldown,
		now:           opts.Now,
		logger:        opts.Logger,
	}
	for k, v := range opts.Stale {
		s.stale[k] = v
	}
	if s.defaultStale <= 0 {
		s.defaultStale = defaultStale
	}
	if s.retention <= 0 {
		s.retention = defaultRetention
	}
	if s.sweepEvery <= 0 {
		s.sweepEvery = s.retention / 2
	}
	if s.errorCooldown <= 0 {
		s.errorCooldown = defaultErrorCooldown
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.baseCtx, s.cancelAll = context.WithCancel(context.Background())
	return s
}

// Init starts the eviction janitor. It is safe to call once.
func (s *Store) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil || s.disposed {
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.janitor(s.stop, s.sweepEvery)
}

// Dispose stops the janitor and cancels every in-flight fetch.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	if s.stop != nil {
		close(s.stop)
	}
	s.mu.Unlock()

	s.cancelAll()
	s.wg.Wait()
}

func (s *Store) janitor(stop <-chan struct{}, every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("cache sweep", slog.Int("evicted", n))
			}
		}
	}
}

// StaleTime returns the staleness window for key.
func (s *Store) StaleTime(key Key) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staleLocked(key)
}

func (s *Store) staleLocked(key Key) time.Duration {
	if d, ok := s.stale[key.Collection()]; ok {
		return d
	}
	return s.defaultStale
}

func (s *Store) entryLocked(key Key) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

func (s *Store) viewLocked(key Key, e *entry) Entry {
	return Entry{
		Key:         key,
		Value:       e.value,
		HasValue:    e.hasValue,
		FetchedAt:   e.fetchedAt,
		StaleAfter:  s.staleLocked(key),
		Invalidated: e.invalidated,
		Fetching:    e.fetch != nil,
		Err:         e.err,
		ErrAt:       e.errAt,
		Version:     e.version,
	}
}

// Peek returns the entry without triggering a fetch or touching its access time.
func (s *Store) Peek(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{Key: key, StaleAfter: s.staleLocked(key)}, false
	}
	v := s.viewLocked(key, e)
	return v, v.HasValue
}

// Get returns the current entry without blocking. On a miss, staleness, or
// invalidation it starts a background fetch (at most one per key) and returns
// the previous value, if any, while that fetch is pending.
func (s *Store) Get(key Key, fetch FetchFunc) (Entry, bool) {
	s.mu.Lock()
	now := s.now()
	e := s.entryLocked(key)
	e.lastAccess = now
	if fetch != nil {
		e.fetcher = fetch
	}
	cooling := e.err != nil && now.Sub(e.errAt) < s.errorCooldown
	if e.fetcher != nil && e.fetch == nil && !cooling && !s.disposed && s.viewLocked(key, e).IsStale(now) {
		s.startFetchLocked(key, e)
	}
	v := s.viewLocked(key, e)
	s.mu.Unlock()
	return v, v.HasValue
}

// Load is the blocking read-through: a fresh value is returned directly, a
// stale value is returned while a background refetch runs, and a miss waits
// for the fetch to complete.
func (s *Store) Load(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	for {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return nil, ErrDisposed
		}
		now := s.now()
		e := s.entryLocked(key)
		e.lastAccess = now
		if fetch != nil {
			e.fetcher = fetch
		}
		if s.viewLocked(key, e).IsStale(now) && e.fetch == nil && e.fetcher != nil {
			s.startFetchLocked(key, e)
		}
		if e.hasValue {
			v := e.value
			s.mu.Unlock()
			return v, nil
		}
		call := e.fetch
		s.mu.Unlock()

		if call == nil {
			return nil, ErrNoFetcher
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-call.done:
		}
		if call.applied {
			if call.err != nil {
				return nil, call.err
			}
			return call.value, nil
		}
		// Superseded by a newer write or fetch; observe the new state.
	}
}

func (s *Store) startFetchLocked(key Key, e *entry) {
	e.gen++
	ctx, cancel := context.WithCancel(s.baseCtx)
	call := &fetchCall{gen: e.gen, cancel: cancel, done: make(chan struct{})}
	e.fetch = call
	go s.runFetch(ctx, key, call, e.fetcher)
}

func (s *Store) runFetch(ctx context.Context, key Key, call *fetchCall, fetch FetchFunc) {
	value, err := fetch(ctx)

	s.mu.Lock()
	var pending []func()
	e, ok := s.entries[key]
	if ok && e.fetch == call {
		e.fetch = nil
	}
	switch {
	case !ok || e.gen != call.gen || ctx.Err() != nil:
		s.logger.Debug("fetch superseded", slog.String("key", string(key)))
	case err != nil:
		e.err = err
		e.errAt = s.now()
		call.applied = true
		pending = s.changedLocked(key, e)
	default:
		s.writeLocked(e, value)
		call.applied = true
		pending = s.changedLocked(key, e)
	}
	call.value, call.err = value, err
	s.mu.Unlock()

	call.cancel()
	close(call.done)
	run(pending)
}

func (s *Store) writeLocked(e *entry, value any) {
	e.value = value
	e.hasValue = true
	e.fetchedAt = s.now()
	e.invalidated = false
	e.err = nil
	e.errAt = time.Time{}
	e.version++
}

// supersedeLocked bumps the generation and cancels any in-flight fetch so
// its result can no longer land.
func (s *Store) supersedeLocked(e *entry) {
	e.gen++
	if e.fetch != nil {
		e.fetch.cancel()
		e.fetch = nil
	}
}

// Set overwrites the value, resets the fetch timestamp and clears the
// invalidation flag.
func (s *Store) Set(key Key, value any) Entry {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.lastAccess = s.now()
	s.supersedeLocked(e)
	s.writeLocked(e, value)
	v := s.viewLocked(key, e)
	pending := s.changedLocked(key, e)
	s.mu.Unlock()
	run(pending)
	return v
}

// UpdateFunc computes the next value from the current entry. It runs under
// the store lock and must not call back into the Store.
type UpdateFunc func(current Entry) (any, error)

// UpdateResult reports both sides of an Update.
type UpdateResult struct {
	Previous Entry
	Current  Entry
	Changed  bool
}

// Update performs an atomic read-modify-write. Concurrent updates on the
// store serialize. Returning ErrSkip leaves the entry unchanged without error;
// any other error aborts the update and is returned.
func (s *Store) Update(key Key, fn UpdateFunc) (UpdateResult, error) {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.lastAccess = s.now()
	prev := s.viewLocked(key, e)
	next, err := fn(prev)
	if errors.Is(err, ErrSkip) {
		s.mu.Unlock()
		return UpdateResult{Previous: prev, Current: prev}, nil
	}
	if err != nil {
		s.mu.Unlock()
		return UpdateResult{Previous: prev, Current: prev}, err
	}
	s.supersedeLocked(e)
	s.writeLocked(e, next)
	cur := s.viewLocked(key, e)
	pending := s.changedLocked(key, e)
	s.mu.Unlock()
	run(pending)
	return UpdateResult{Previous: prev, Current: cur, Changed: true}, nil
}

// Restore puts snapshot back only if the entry is still at version, that
// is, nothing has written to it since the caller's own write. It reports
// whether the restore happened.
func (s *Store) Restore(snapshot Entry, version uint64) bool {
	s.mu.Lock()
	e, ok := s.entries[snapshot.Key]
	if !ok || e.version != version {
		s.mu.Unlock()
		return false
	}
	s.supersedeLocked(e)
	e.value = snapshot.Value
	e.hasValue = snapshot.HasValue
	e.fetchedAt = snapshot.FetchedAt
	e.invalidated = snapshot.Invalidated
	e.err = snapshot.Err
	e.errAt = snapshot.ErrAt
	e.version++
	pending := s.changedLocked(snapshot.Key, e)
	s.mu.Unlock()
	run(pending)
	return true
}

// Cancel aborts any in-flight fetch for key. A cancelled fetch never applies
// its result.
func (s *Store) Cancel(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.fetch != nil {
		s.supersedeLocked(e)
	}
}

// Invalidate marks key stale. In-flight fetches are cancelled, and entries
// with active subscribers are refetched right away.
func (s *Store) Invalidate(key Key) {
	s.InvalidateMany(func(k Key) bool { return k == key })
}

// InvalidateMany invalidates every key matching pred and returns the count.
func (s *Store) InvalidateMany(pred func(Key) bool) int {
	s.mu.Lock()
	var pending []func()
	n := 0
	for key, e := range s.entries {
		if !pred(key) {
			continue
		}
		n++
		s.supersedeLocked(e)
		e.invalidated = true
		if len(e.subs) > 0 && e.fetcher != nil && !s.disposed {
			s.startFetchLocked(key, e)
		}
		pending = append(pending, s.changedLocked(key, e)...)
	}
	s.mu.Unlock()
	run(pending)
	return n
}

// Remove drops every entry matching pred, cancelling their fetches.
func (s *Store) Remove(pred func(Key) bool) int {
	s.mu.Lock()
	var pending []func()
	n := 0
	for key, e := range s.entries {
		if !pred(key) {
			continue
		}
		s.supersedeLocked(e)
		delete(s.entries, key)
		n++
		for _, fn := range s.watchers {
			fn := fn
			k := key
			pending = append(pending, func() { fn(k) })
		}
	}
	s.mu.Unlock()
	run(pending)
	return n
}

// RevalidateStale starts a fetch for every stale entry that has subscribers
// and a known fetcher. It returns the number of fetches started.
func (s *Store) RevalidateStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return 0
	}
	now := s.now()
	n := 0
	for key, e := range s.entries {
		if len(e.subs) == 0 || e.fetcher == nil || e.fetch != nil {
			continue
		}
		if s.viewLocked(key, e).IsStale(now) {
			s.startFetchLocked(key, e)
			n++
		}
	}
	return n
}

// Sweep evicts entries that have no subscribers, no fetch in flight, and
// have not been accessed within the retention window.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for key, e := range s.entries {
		if len(e.subs) > 0 || e.fetch != nil {
			continue
		}
		if now.Sub(e.lastAccess) > s.retention {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Subscribe registers fn for changes of key. A subscribed entry counts as
// actively read and is never evicted. The returned func unsubscribes.
func (s *Store) Subscribe(key Key, fn func(Entry)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	e.lastAccess = s.now()
	if e.subs == nil {
		e.subs = make(map[uint64]func(Entry))
	}
	s.nextID++
	id := s.nextID
	e.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.entries[key]; ok {
			delete(cur.subs, id)
			cur.lastAccess = s.now()
		}
	}
}

// Watch registers fn for changes of any key.
func (s *Store) Watch(fn func(Key)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Store) changedLocked(key Key, e *entry) []func() {
	view := s.viewLocked(key, e)
	out := make([]func(), 0, len(e.subs)+len(s.watchers))
	for _, fn := range e.subs {
		fn := fn
		out = append(out, func() { fn(view) })
	}
	for _, fn := range s.watchers {
		fn := fn
		out = append(out, func() { fn(key) })
	}
	return out
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
