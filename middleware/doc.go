// Package middleware provides net/http middleware to put in front of a netapi
// engine, either through [netapi.Engine.Routes] or any other router.
//
// # Middleware
//
//   - [ClientInfo] records the client IP and a request ID in the context.
//   - [AccessLog] writes one zap entry per request.
//   - [Recover] turns panics outside the dispatcher into 500 responses.
//   - [RateLimiter] applies a per-IP token bucket.
//   - [Guard] and [RequireAuthenticated] protect routes that are not
//     dispatched, such as a metrics endpoint, with the session profile.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. Session lookup and
// permission checks are delegated to [netapi.Engine.Profile] and the
// returned profile.
//
// # What this package must NOT do
//
//   - Parse session cookies or tokens directly.
//   - Access Redis.
//   - Write dispatch exception envelopes; those belong to the engine.
package middleware
