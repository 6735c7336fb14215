// Package internal holds identifier and opaque-token primitives shared by the
// authkit backends.
//
// Session ids are 16 random bytes rendered as unpadded base64url. Opaque
// tokens (refresh and password-reset) are a 48-byte concatenation of the
// owning record id and a 32-byte secret, also base64url encoded, so a token
// can be resolved to its record without a table scan and compared by secret
// hash.
//
// # What this package must NOT do
//
//   - Be imported outside the authkit module.
//   - Persist anything.
package internal
