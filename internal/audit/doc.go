// Package audit implements async event dispatching for authentication
// operations.
//
// # Components
//
//   - [Event] — structured record: action, resource, user, session, success,
//     error string, metadata, stamped at emission.
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full
//     semantics and a drop counter.
//
// Delivery is fire-and-forget: a slow or absent sink never blocks an
// authentication call, and event loss is non-fatal by contract.
//
// # What this package must NOT do
//
//   - Decide which events to emit — providers own that.
//   - Import authkit or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
