package audit

import (
	"context"
	"log"

	"fleet-control-service/internal/ports"
)

// LogAuditSink writes audit events to the local log. Used when no webhook is
// configured.
type LogAuditSink struct{}

func NewLogAuditSink() *LogAuditSink { return &LogAuditSink{} }

func (s *LogAuditSink) Record(ctx context.Context, ev ports.AuditEvent) {
	log.Printf("audit action=%s actor=%s resource=%s at=%s", ev.Action, ev.ActorID, ev.Resource, ev.At.Format("2006-01-02T15:04:05Z07:00"))
}
