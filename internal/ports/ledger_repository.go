package ports

import (
	"context"
	"fleet-control-service/internal/domain"
)

// Port: the checkpoint-event ledger and checker accounting.
type LedgerRepository interface {
	GetCheckpoint(ctx context.Context, checkpointID string) (*domain.Checkpoint, error)
	GetChecker(ctx context.Context, checkerID string) (*domain.Checker, error)
	GetEvent(ctx context.Context, eventID string) (*domain.CheckpointEvent, error)
	RecentEvents(ctx context.Context, vehicleID string, limit int) ([]*domain.CheckpointEvent, error)

	// AppendEvent persists ev, filling ev.ElapsedMinutes from the latest
	// prior event for the vehicle, and applies the checker's counter
	// increments (always the check-in count, the income only when the event
	// is already PAID). The prior-event read, the insert, and the increments
	// execute in one transaction so concurrent appends for a vehicle cannot
	// interleave.
	AppendEvent(ctx context.Context, ev *domain.CheckpointEvent) (*domain.CheckpointEvent, error)

	// MarkEventPaid transitions the event PENDING -> PAID and credits the
	// event's checker, at most once per event; transitioned reports whether
	// this call performed the transition. An already-PAID event returns
	// transitioned=false with no error and no increment.
	MarkEventPaid(ctx context.Context, eventID string) (ev *domain.CheckpointEvent, transitioned bool, err error)
}
