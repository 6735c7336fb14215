// Package jwt issues and verifies HMAC-signed access tokens for authkit
// sessions.
//
// Access tokens are HS256 JWTs signed with the shared secret from the auth
// configuration. Claims carry the session id ("sid"), user role and
// organization alongside the registered subject/expiry set. Verification is
// strict: only HS256 is accepted, expiry is enforced with a bounded leeway,
// and tokens signed with any other method (including "none") are rejected.
//
// The token is a hint, not the source of truth. A parsed token only locates
// the owning session; session state in the store decides whether the token is
// still live.
//
// # What this package must NOT do
//
//   - Look up sessions or users (no upward imports).
//   - Accept unsigned or non-HMAC tokens.
//   - Embed secrets or password material in claims.
package jwt
