// Package permission provides fixed-width bitmasks, an operation permission registry,
// and group composition helpers used by netapi security profiles.
//
// # Permission names
//
// A permission is the qualified name of a dispatchable operation, "Owner.operation"
// (for example "shop.Cart.checkout"). [Registry.Register] assigns each name a stable bit
// position for the lifetime of the process.
//
// # Mask widths
//
// Supported widths: 64, 128, 256, and 512 bits. The width is selected at registry
// construction time. When root reservation is enabled the highest bit grants every
// permission.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import netapi, security, or session.
//   - Resize masks after registry construction.
package permission
