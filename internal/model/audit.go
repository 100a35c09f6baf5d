package model

import "time"

// AuditEntry is one append-only row of the audit trail.
type AuditEntry struct {
	ID          uint64    // audit_logs.id
	ActorID     *uint64   // audit_logs.user_id (nil for system actions)
	Action      string    // audit_logs.action
	EntityType  string    // audit_logs.entity_type
	EntityID    uint64    // audit_logs.entity_id
	Description string    // audit_logs.description
	Status      string    // audit_logs.status (success, failure)
	CreatedAt   time.Time // audit_logs.created_at
}
