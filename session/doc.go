// Package session provides the session model and interchangeable session
// stores for authkit backends.
//
// A [Session] binds a user to a live access/refresh token pair and its
// expiries. The [Store] interface is deliberately narrow so the in-memory
// store (tests, local development) and the Redis store (shared deployments)
// are drop-in replacements for each other.
//
// # Rotation contract
//
// [Store.ConsumeRefreshToken] is the single-use gate for refresh rotation:
// it atomically resolves a refresh token to its session and removes that
// session. When two refreshes race on the same token, at most one receives
// the session; the memory store serializes under its mutex, the Redis store
// under a Lua script.
//
// # Binary encoding
//
// The Redis store persists sessions in a compact versioned binary format
// (see encoder.go). The encoder is append-only: new versions add fields but
// never reinterpret old ones.
//
// # What this package must NOT do
//
//   - Decide token validity policy — stores resolve and delete, providers
//     decide what an expired record means.
//   - Import authkit or jwt (no upward imports).
package session
