package authkit

import internalaudit "github.com/shiftcrew/authkit/internal/audit"

// auditDispatcher is the root-package alias of the internal dispatcher.
// The shape lives in internal/audit so that backends, the façade, and tests
// share one implementation.
type auditDispatcher = internalaudit.Dispatcher

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}
