// Package netapi exposes server-defined operations as HTTP endpoints.
//
// Services are registered explicitly through the registry package; each request
// to {mount}/{Owner}/{operation} is resolved to one exposed operation, its
// parameters are bound through a named request converter, the session's
// security profile is checked, a fresh handler is constructed and invoked, and
// the result is written through a named response converter (or streamed, for
// [Downloadable] results). Every failure becomes an [ExceptionResponse].
//
// The Engine is safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// netapi is the public surface. It exposes [Engine], [Builder], [Config], the
// envelope types, and the error taxonomy. Wire codecs live in converter,
// operation metadata in registry, session persistence in session, and
// permission checks in security. Audit buffering and the login throttle live
// under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Discover operations or handler fields by reflection at dispatch time.
//   - Share handler instances between requests.
//   - Write more than one of payload, download, or exception envelope per request.
//   - Import any sub-package that re-imports netapi (no import cycles).
//
// # Performance contract
//
// A dispatch of a non-secured operation with a fresh session performs no Redis
// round-trip. Loading a stored session costs one GET (plus one PEXPIRE with
// sliding expiration); committing a modified session costs one EVALSHA.
package netapi
