// Package http exposes the parking services as a JSON API on net/http.
//
// Sessions are created with POST /sessions, rotated with PUT /sessions/current
// and carried either as "Authorization: Bearer <token>" or in the
// session_token cookie. Every other route except POST /users,
// GET /ws/availability and GET /healthz passes through RequireSession, which
// stores the resolved application.Principal in the request context. Role checks are left to the application services.
//
// Resources:
//   - /users/{id} with /profile, /deletion, /reservations and /spend sub-resources.
//     User ids may be given with or without their leading "@".
//   - /lots/{id}, /lots/{id}/spots and /spots/{id}.
//   - POST /lots/{id}/reservations parks a vehicle. A reservation is ended by
//     POST /reservations/{id}/payment, optionally after a POST /reservations/{id}/quote.
//   - GET /vehicles?number= and GET /reports/lots.
//
// Money is rendered as a string with two decimals. Failures use the envelope
// {"error_code","message","errors"} where errors maps field names to messages
// for 422 responses.
package http
