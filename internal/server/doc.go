// Package server provides HTTP routing, middleware and handlers for the NutriVision API,
// plus the OAuth callback handler used by the CLI's loopback sign-in.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering;
// method mismatches and unknown paths are answered with a JSON envelope.
//
// # API
//
// [API] mounts the backend routes under /api:
//
//	GET  /api/health          status and database mode, not enveloped
//	POST /api/auth/register   create an account, returns {token, user}
//	POST /api/auth/login      verify a password, returns {token, user}
//	POST /api/meals/add       bearer token required
//	GET  /api/meals/history   bearer token required, ?limit=N
//	GET  /api/meals/stats     bearer token required
//
// Passwords are hashed with bcrypt. Session tokens are HS256 JWTs issued by [TokenIssuer]
// and checked by [RequireAuth]. Every other response is {success, data | message}.
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives a single provider callback on a loopback address, either as a
// query string (authorization code, exchanged with PKCE) or as a form post carrying an
// ID token directly. The result is sent through a channel exactly once; later callbacks
// are rejected.
package server
