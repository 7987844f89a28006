// Package http provides HTTP handlers and middleware for the room booking API.
//
// The router exposes the following endpoints:
//   - POST /register: creates an account. Body: {"email","display_name","password"}.
//     Response carries the user plus an access/refresh token pair.
//   - POST /login: authenticates and issues an access/refresh token pair.
//   - POST /sessions/refresh: rotates a refresh token. Body: {"refresh_token"}.
//   - DELETE /sessions/current: revokes the refresh token named in the body.
//     Returns 204 No Content; unknown tokens are treated as already revoked.
//   - GET /rooms, POST /rooms, GET /rooms/{id}, PATCH /rooms/{id},
//     DELETE /rooms/{id}: room catalog endpoints exchanging the `roomDTO`
//     payload defined in room_handler.go. Updates are guarded by the If-Match
//     header; a stale version yields 412 with the authoritative state and a
//     merge proposal. Every room response carries an ETag.
//   - POST /rooms/recommend: returns up to ten rooms ranked best first for a
//     head count, optional preferred floor, and optional time window.
//   - POST /rooms/assign: books a room for a window. With "room_id" the named
//     room is booked; without it the best free match is chosen. Conflicts and
//     exhausted searches yield 409 with a machine readable error_code.
//   - GET /events: websocket stream of room catalog change events.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
