// Package http serves the eventboard API over gorilla/mux.
//
// Every route except /health requires HTTP basic auth. The resolved
// principal travels on the request context; see PrincipalFromContext.
//
// Routes:
//   - GET /login: the caller's {"userId","isAdmin"}.
//   - GET, POST /event and GET, PATCH, DELETE /event/{eventId}: event CRUD.
//     GET /event accepts optional from and to bounds.
//   - POST /event/{eventId}/repeat: expands an event into occurrences.
//   - GET /event/retrieve-recurring-suffixes and
//     GET /event/retrieve-recurring-events?recurringEventIds=1,2: recurrence listings.
//   - POST, DELETE /event/{eventId}/assign/{userId}: attendance. A repeated
//     POST answers 200 {"status":"already_assigned"}.
//   - GET /event/{eventId}/assign: users assigned to the event.
//   - GET, POST /user, GET, PATCH, DELETE /user/{userId} and
//     PATCH /user/{userId}/password: user management.
//   - GET /user/{userId}/events?afterDateTime=: events a user attends.
//   - GET /calendar and GET /calendar.ics with required from and to: merged
//     events and occurrences as JSON or iCalendar.
//
// Request and response DTOs live next to their handlers.
package http
