// Package api provides the HTTP transport and typed endpoints of the cinema
// backend.
//
// # Overview
//
// The package is split into three layers:
//
//   - client.go: the Requester transport (JSON encoding, bearer auth, outbound
//     rate limiting, error decoding)
//   - service.go: one method per backend endpoint, validating every payload
//     before it is handed to callers
//   - types.go: data structures mirroring the backend schema
//
// # Client Usage
//
//	client, err := api.NewClient("http://localhost:3022",
//		api.WithTokenSource(tokens),
//		api.WithRateLimit(10, 5),
//	)
//	if err != nil {
//		return err
//	}
//	svc := api.NewService(client)
//	movies, err := svc.Movies(ctx)
//
// # Endpoints
//
//   - GET  /movies, /movies/{id}/sessions
//   - GET  /cinemas, /cinemas/{id}/sessions
//   - GET  /movieSessions/{id}
//   - POST /movieSessions/{id}/bookings
//   - GET  /me/bookings
//   - POST /bookings/{id}/payments
//   - GET  /settings
//   - POST /login, /register
//
// # Error Handling
//
// Every failure is an *Error carrying the HTTP status and the server message.
// Status 0 (StatusNetwork) means no response was received at all: connection
// refused, DNS failure, timeout, or a cancelled context. The underlying error
// stays reachable through errors.Is/As, so context.Canceled is detectable.
//
// Responses that decode but fail validation (for example a rating outside
// 0..10 or a seat with row 0) are reported with status 500, the same way a
// broken server would be.
package api
