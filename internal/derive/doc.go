// Package derive computes read-only views from cached entities: sessions
// grouped by day, bookings split into categories, cross-entity joins and
// display formatting.
//
// Everything here is a pure function of its inputs. Memo caches one such
// computation over the store and recomputes it only after a relevant entry
// changes.
package derive
