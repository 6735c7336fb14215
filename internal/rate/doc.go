// Package rate provides the Redis-backed fixed-window rate-limit store used
// to throttle repeated authentication failures.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on the first hit. Keys are
// <prefix>:<action>:<sha256(identifier) hex>, so raw identifiers (emails)
// never appear in Redis.
//
// # What this package must NOT do
//
//   - Decide which operations are throttled (providers own that).
//   - Be imported outside the authkit module.
package rate
