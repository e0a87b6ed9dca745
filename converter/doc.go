// Package converter provides the request and response codecs used by the netapi
// dispatcher and the name-keyed [Registry] that selects them.
//
// # Registry
//
// A [Registry] holds two independent namespaces, request converters and response
// converters, keyed by case-sensitive format name. Registration is additive and
// last-write-wins per name. After [Registry.Freeze] the registry is read-only and
// safe for concurrent lookups.
//
// Response lookups fall back to the default response converter for unknown names.
// Request lookups report unknown names to the caller, which must treat them as a
// binding failure.
//
// # Built-in formats
//
//   - properties: query/form fields bound onto structs and maps (request only)
//   - json, xml, yaml, toml, msgpack: document codecs (both directions)
//   - json-multipart: JSON document from the "json" field plus uploaded files
//
// # What this package must NOT do
//
//   - Import netapi or registry (no upward imports).
//   - Keep process-wide mutable state; every registry is an explicit value.
package converter
