// Package state tracks connectivity between Marquee and the booking API.
//
// The background sync loop calls Store.Record after every round with the
// number of cache entries it revalidated, or with the error that stopped it.
// The UI reads Store.Snapshot on each frame to show when data was last
// refreshed and to switch the header into an offline indicator once
// IsOffline reports two failed rounds in a row.
//
// Record keeps the previous success time when a round fails, so stale data
// on screen can still be labelled with its real age. Snapshots are copies;
// callers never share the stored error value.
package state
