// Package authkit provides a pluggable authentication layer: a uniform
// provider contract for sign-in, token validation and rotation, password
// reset, profile update, and revocation, with interchangeable backends
// selected through a registry.
//
// Two backends ship built in: an in-memory backend with seeded demo
// accounts for tests and local development, and an adapter over a remote
// identity service. Both are wrapped by [Service], built through [Builder],
// which holds the current token material and schedules proactive refresh.
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Service], [Builder], [Config],
// the [Provider] contract, and value types (User, Result, SecurityReport).
// Token encoding, audit dispatch, rate limiting, and metadata sanitization
// live under internal/ and are never exported. The jwt, password, and
// session sub-packages are public because backends outside this module need
// them to implement [Provider].
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or token encoding details in
//     its public API.
//   - Trust a remote backend's error wording: remote failures are mapped
//     onto the fixed error taxonomy, and anything unmapped degrades to
//     [ErrProviderUnavailable].
//   - Import any sub-package that re-imports authkit (no import cycles).
//
// # Error taxonomy
//
// Every operation fails with a sentinel from errors.go, possibly wrapped.
// [CodeForError] collapses any returned error chain to a stable machine
// code for transport boundaries.
package authkit
