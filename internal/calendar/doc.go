// Package calendar provides a minimal Google Calendar client for creating
// a single event.
//
// Credentials come from an env-format secrets file holding
// GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REFRESH_TOKEN and an
// optional GOOGLE_CALENDAR_ID. Each call exchanges the refresh token for an
// access token and issues one POST to the events endpoint. Non-success
// responses surface as [*UpstreamError]; nothing is retried.
package calendar
