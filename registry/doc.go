// Package registry holds the explicit, startup-time table of dispatchable services
// and their operations.
//
// Services are declared with [NewService] and operations with the typed helpers
// [Method0], [Method1], [Method2], [Method3], [Action0], and [Action1], which take
// Go method expressions:
//
//	cart := registry.NewService[*Cart]("shop.Cart", newCart)
//	registry.Method1(cart, "add", (*Cart).Add, registry.Exposed(), registry.Secured())
//
// Markers (exposed, secured, login, logout, validated, description) are set per
// operation at registration time. A [Registry] is frozen before serving and is
// read-only afterwards.
//
// # What this package must NOT do
//
//   - Import netapi (no upward imports).
//   - Discover operations by reflection over arbitrary method sets.
package registry
