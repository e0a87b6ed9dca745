// Package security defines the security profile contract consumed by the netapi
// dispatcher and a permission-mask based implementation of it.
//
// # Profiles
//
// A [Profile] is attached to a client session by a login operation and answers
// whether a given operation may be invoked. [BasicProfile] answers from a frozen
// [Policy] that maps user groups to permission masks.
//
// # Architecture boundaries
//
// This package owns [Profile], [Policy], and the [ProfileCodec] used by session
// stores. It does NOT load sessions, read HTTP requests, or decide which operations
// are secured; those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import netapi, session, or any transport package.
//   - Mutate a [Policy] after it has been built.
package security
