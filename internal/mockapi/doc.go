// Package mockapi is an in-memory implementation of the booking backend's
// REST contract, for local development and integration tests.
//
// It serves the catalogue (movies, cinemas, sessions with seat maps), signs
// HS256 tokens on login and register, and enforces the same rules the real
// backend does: a seat can be held by one booking, a booking can be paid
// once, and unpaid bookings are released when the payment window closes.
// Bookings and payments honour the Idempotency-Key header so client retries
// never double-book.
package mockapi
