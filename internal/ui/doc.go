// Package ui is the Bubble Tea terminal interface of Marquee.
//
// # Views
//
//   - Movies and Cinemas: the catalog, movies ordered by rating
//   - Sessions: screenings of one movie or cinema grouped by day
//   - Seats: the hall layout; select seats and book them
//   - Tickets: the user's bookings split into Unpaid, Upcoming and Past,
//     with a live payment countdown on unpaid ones
//   - Activity: the tail of marquee.log, filtered by level
//
// Sign-in and registration open in a modal dialog.
//
// # Data flow
//
// Views never block on the network. Every render reads the query layer,
// which returns cached data immediately and refreshes stale entries in the
// background. Run watches the cache and forwards each change to the program
// as a message, so a finished fetch or an optimistic write re-renders the
// screen.
//
// After every update the model subscribes to exactly the cache keys the
// current view shows. Subscribed entries are never evicted and are the ones
// the background sync loop revalidates.
//
// Booking and payment run as commands through the mutation engine. The seat
// map and ticket list show the optimistic result at once; the engine rolls
// it back and reports the error if the server refuses.
//
// # State
//
// Model is a value, as Bubble Tea expects. Subscriptions, countdown timers
// and the memoised booking index live behind a shared pointer so every copy
// of the model sees the same set; Close releases them.
package ui
