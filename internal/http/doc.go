// Package http provides HTTP handlers and middleware for the on-call
// scheduler API.
//
// The router exposes the following endpoints:
//   - GET /schedules, POST /schedules, GET /schedules/{id}: schedule
//     management endpoints exchanging the `scheduleDTO` payload defined in
//     schedule_handler.go.
//   - PUT /schedules/{id}/template: replaces the schedule's recurrence
//     template wholesale. Events generated from the old template stay on the
//     calendar.
//   - PUT /schedules/{id}/order: replaces the schedule's rotation priority
//     order with the given user list.
//   - POST /schedules/{id}/populate: generates and persists events over the
//     schedule's horizon. Body: {"start"} (RFC 3339, optional; defaults to
//     now). A start more than one horizon in the past is rejected with 400
//     and leaves all state untouched.
//   - GET /schedules/{id}/preview?start=...: returns exactly the events
//     populate would create, without persisting anything.
//   - GET /events, POST /events, DELETE /events/{id}: manual calendar event
//     endpoints exchanging the `eventDTO` payload defined in
//     event_handler.go. Listing accepts team, user, role, start_before and
//     end_after query parameters.
//   - GET /teams/{team}/oncall and GET /teams/{team}/oncall/{role}: report
//     who is on call right now. The role-scoped form includes users serving
//     through subscriptions.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
