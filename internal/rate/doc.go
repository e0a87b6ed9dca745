// Package rate provides the Redis-backed failed-login throttle used by the
// dispatcher for login-marked operations.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - nl: failed login-marked calls per client IP
//
// # What this package must NOT do
//
//   - Decide which operations are login operations (the dispatcher does).
//   - Be imported outside the netapi module.
package rate
