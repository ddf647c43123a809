package services

import "trainhub/backend/utils"

// AuditEvent describes one state-changing action for the audit trail.
type AuditEvent struct {
	ActorID  uint
	Action   string // e.g. "plan.finalize", "plan.reopen", "lesson.finish"
	Entity   string
	EntityID uint
	Reason   string
}

// AuditRecorder consumes audit events. The core emits events instead of
// writing logs inline; the default recorder forwards them to the app
// logger, a real deployment can swap in a persistent sink.
type AuditRecorder interface {
	Record(event AuditEvent)
}

type logAuditRecorder struct {
	logger *utils.Logger
}

// NewLogAuditRecorder records audit events on the application logger.
func NewLogAuditRecorder(logger *utils.Logger) AuditRecorder {
	return &logAuditRecorder{logger: logger}
}

func (r *logAuditRecorder) Record(event AuditEvent) {
	r.logger.Info("audit",
		"actor_id", event.ActorID,
		"action", event.Action,
		"entity", event.Entity,
		"entity_id", event.EntityID,
		"reason", event.Reason,
	)
}
