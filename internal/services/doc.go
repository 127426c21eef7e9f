// Package services implements the client side of the NutriVision backend API.
//
// # Dispatcher
//
// [Dispatcher] issues every backend call. It turns whatever the HTTP boundary hands back
// (JSON, an HTML error page, garbage or nothing) into either a [models.Envelope] or a typed error:
//
//   - [shared.TransportError] : HTML error page, invalid JSON, or backend unreachable
//   - [shared.AuthError] : missing token (checked before any network call) or a 401 response
//   - [shared.APIError] : any other non-2xx status, carrying the server's message
//
// The raw body is always read in full and classified before a JSON parse is attempted.
// A 401 on a request that carried the session token clears the [session.Store] before the
// error is returned, so a stale token is never reused.
//
// # Client
//
// [Client] wraps the dispatcher with one method per backend endpoint. Register and Login
// install the returned session; Logout clears it.
package services
