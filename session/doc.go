// Package session provides per-client dispatch sessions, a compact binary session
// encoding, and Redis-backed and in-memory session stores.
//
// # Lifecycle
//
// A [Session] is created lazily for a client that presents no valid session cookie.
// It is persisted only once it has been modified (a profile attached or detached,
// or a value set). Stores apply a sliding TTL on load, capped by the absolute
// lifetime recorded at creation.
//
// # Binary encoding
//
// Sessions are stored as a versioned binary blob. The attached security profile is
// embedded through a [security.ProfileCodec] supplied by the caller.
//
// # Architecture boundaries
//
// This package owns the [Store] implementations and the [Session] model. It does NOT
// issue cookies, evaluate permissions, or decide when a session is committed; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import netapi or jwt (no upward imports).
//   - Perform application-level authorization decisions.
package session
