// Package password implements Argon2id password hashing and configurable
// password policy validation.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports whether a stored hash was produced with weaker
// parameters than the active configuration, so callers can re-hash on the next
// successful verification.
//
// # Policy validation
//
// [Policy.Validate] checks every configured rule and returns a [*PolicyError]
// carrying one [Violation] per unmet rule. It never fails fast: callers need
// the complete list to surface every problem at once.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authkit package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
