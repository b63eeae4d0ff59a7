package ports

import (
	"context"
	"time"
)

// AuditEvent is a best-effort record of a completed operation.
type AuditEvent struct {
	ID       string         `json:"id"`
	Action   string         `json:"action"`
	ActorID  string         `json:"actor_id,omitempty"`
	Resource string         `json:"resource"`
	At       time.Time      `json:"at"`
	Details  map[string]any `json:"details,omitempty"`
}

// Port: fire-and-forget audit recording. Implementations never block the
// caller and never surface errors; delivery failures are logged locally.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}
