package repositories

import (
	"context"
	"sync"

	"fleet-control-service/internal/domain"
)

// MemoryLedgerRepository is an in-memory LedgerRepository for tests and
// database-less local runs.
type MemoryLedgerRepository struct {
	mu          sync.Mutex
	checkpoints map[string]*domain.Checkpoint
	checkers    map[string]*domain.Checker
	events      []*domain.CheckpointEvent
	byID        map[string]*domain.CheckpointEvent
}

func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		checkpoints: make(map[string]*domain.Checkpoint),
		checkers:    make(map[string]*domain.Checker),
		byID:        make(map[string]*domain.CheckpointEvent),
	}
}

func (m *MemoryLedgerRepository) AddCheckpoint(cp domain.Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.CheckpointID] = &cp
}

func (m *MemoryLedgerRepository) AddChecker(ck domain.Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[ck.CheckerID] = &ck
}

func (m *MemoryLedgerRepository) GetCheckpoint(ctx context.Context, checkpointID string) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[checkpointID]
	if !ok {
		return nil, domain.NotFoundf("checkpoint %q", checkpointID)
	}
	out := *cp
	return &out, nil
}

func (m *MemoryLedgerRepository) GetChecker(ctx context.Context, checkerID string) (*domain.Checker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ck, ok := m.checkers[checkerID]
	if !ok {
		return nil, domain.NotFoundf("checker %q", checkerID)
	}
	out := *ck
	return &out, nil
}

func (m *MemoryLedgerRepository) GetEvent(ctx context.Context, eventID string) (*domain.CheckpointEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.byID[eventID]
	if !ok {
		return nil, domain.NotFoundf("check-in event %q", eventID)
	}
	out := *ev
	return &out, nil
}

func (m *MemoryLedgerRepository) RecentEvents(ctx context.Context, vehicleID string, limit int) ([]*domain.CheckpointEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.CheckpointEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].VehicleID == vehicleID {
			cp := *m.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryLedgerRepository) AppendEvent(ctx context.Context, ev *domain.CheckpointEvent) (*domain.CheckpointEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ElapsedMinutes = nil
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].VehicleID == ev.VehicleID {
			minutes := domain.ElapsedMinutes(m.events[i].Timestamp, ev.Timestamp)
			ev.ElapsedMinutes = &minutes
			break
		}
	}

	if ev.CheckerID != nil {
		ck, ok := m.checkers[*ev.CheckerID]
		if !ok {
			return nil, domain.NotFoundf("checker %q", *ev.CheckerID)
		}
		ck.TotalCheckIns++
		if ev.PaymentState == domain.PaymentPaid {
			ck.PeriodIncome += ev.Fee
		}
	}

	stored := *ev
	m.events = append(m.events, &stored)
	m.byID[stored.EventID] = &stored

	out := stored
	return &out, nil
}

func (m *MemoryLedgerRepository) MarkEventPaid(ctx context.Context, eventID string) (*domain.CheckpointEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.byID[eventID]
	if !ok {
		return nil, false, domain.NotFoundf("check-in event %q", eventID)
	}

	if ev.PaymentState == domain.PaymentPaid {
		out := *ev
		return &out, false, nil
	}

	ev.PaymentState = domain.PaymentPaid
	if ev.CheckerID != nil {
		if ck, ok := m.checkers[*ev.CheckerID]; ok {
			ck.PeriodIncome += ev.Fee
		}
	}

	out := *ev
	return &out, true, nil
}
