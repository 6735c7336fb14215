// Package middleware exposes HTTP middleware adapters that enforce bearer
// authentication through an authkit token validator.
//
// # Guards
//
//   - [Guard] — reads the Authorization header, validates the token, and
//     injects the resolved user into the request context.
//   - [RequireRole] — Guard plus a role allow-list.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into validator calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// [TokenValidator.ValidateToken].
//
// # What this package must NOT do
//
//   - Parse or create tokens directly.
//   - Distinguish failure causes to the client beyond the status code.
//   - Make authorization decisions beyond the configured role allow-list.
package middleware
