// Package cache provides the keyed entity store shared by query reads and
// optimistic mutations.
//
// # Overview
//
// Every piece of server data the client displays lives in a Store entry
// addressed by a Key ("movies", "sessions/42", "bookings"). Reads go through
// Get (non-blocking) or Load (blocking on a miss), and both apply
// stale-while-revalidate: a stale value is returned immediately while a
// single background fetch refreshes it.
//
// # Ordering
//
// Each entry carries a generation counter. Starting a fetch, writing with
// Set or Update, restoring a snapshot, cancelling and invalidating all bump
// it. A fetch result is applied only when the generation is unchanged since
// that fetch was issued, so the most recently issued operation wins and a
// slow response can never overwrite an optimistic write.
//
// # Versions
//
// Version increments on every value change. Mutations snapshot the entry
// they speculate on and later call Restore with the version their own write
// produced; if anything else has written since, the restore is skipped.
//
//	res, _ := store.Update(key, apply)
//	...
//	store.Restore(res.Previous, res.Current.Version)
//
// # Lifetime
//
// Entries with subscribers are never evicted. Others are dropped by Sweep
// once they have been idle longer than Options.Retention. Init starts a
// janitor that sweeps periodically; Dispose stops it and cancels every
// in-flight fetch.
//
// # Notifications
//
// Subscribe observes a single key and Watch observes all keys. Callbacks run
// on the writer's goroutine after the store lock is released.
package cache
