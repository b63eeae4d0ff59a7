package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/platform/obs"
)

// SQL-backed implementation of the LedgerRepository port. AppendEvent and
// MarkEventPaid keep the event write and the checker increments in one
// transaction; the increments are SQL-side additions, never read-modify-write
// in application code.
type SQLLedgerRepository struct{ DB *sql.DB }

func NewSQLLedgerRepository(db *sql.DB) *SQLLedgerRepository {
	return &SQLLedgerRepository{DB: db}
}

func (s *SQLLedgerRepository) GetCheckpoint(ctx context.Context, checkpointID string) (*domain.Checkpoint, error) {
	if s.DB == nil {
		return nil, errors.New("ledger repository: DB is nil")
	}

	query := `
	SELECT checkpoint_id, name, sequence, assigned_checker_id, lat, lon
	FROM checkpoints
	WHERE checkpoint_id = ?;
	`
	row := s.DB.QueryRowContext(ctx, query, checkpointID)

	var cp domain.Checkpoint
	var checker sql.NullString
	var lat, lon sql.NullFloat64
	err := row.Scan(&cp.CheckpointID, &cp.Name, &cp.Sequence, &checker, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("checkpoint %q", checkpointID)
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: scan row: %w", err)
	}

	cp.AssignedCheckerID = stringFromNull(checker)
	cp.Lat = lat.Float64
	cp.Lon = lon.Float64

	return &cp, nil
}

func (s *SQLLedgerRepository) GetChecker(ctx context.Context, checkerID string) (*domain.Checker, error) {
	if s.DB == nil {
		return nil, errors.New("ledger repository: DB is nil")
	}

	query := `
	SELECT checker_id, name, total_check_ins, period_income
	FROM checkers
	WHERE checker_id = ?;
	`
	row := s.DB.QueryRowContext(ctx, query, checkerID)

	var ck domain.Checker
	err := row.Scan(&ck.CheckerID, &ck.Name, &ck.TotalCheckIns, &ck.PeriodIncome)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("checker %q", checkerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get checker: scan row: %w", err)
	}

	return &ck, nil
}

func (s *SQLLedgerRepository) GetEvent(ctx context.Context, eventID string) (*domain.CheckpointEvent, error) {
	if s.DB == nil {
		return nil, errors.New("ledger repository: DB is nil")
	}

	row := s.DB.QueryRowContext(ctx, selectEventQuery+`WHERE event_id = ?;`, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("check-in event %q", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	return ev, nil
}

func (s *SQLLedgerRepository) RecentEvents(ctx context.Context, vehicleID string, limit int) (_ []*domain.CheckpointEvent, err error) {
	defer obs.Time(ctx, "ledger.RecentEvents")(&err)

	if s.DB == nil {
		return nil, errors.New("ledger repository: DB is nil")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.DB.QueryContext(ctx, selectEventQuery+`
	WHERE vehicle_id = ?
	ORDER BY ts DESC, event_id DESC
	LIMIT ?;
	`, vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: query: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.CheckpointEvent, 0, limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("recent events: scan row: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent events: row iteration: %w", err)
	}

	return events, nil
}

const selectEventQuery = `
	SELECT event_id, vehicle_id, checkpoint_id, operator_id, checker_id,
	       ts, elapsed_minutes, fee, payment_state, lat, lon
	FROM checkpoint_events
	`

func scanEvent(row rowScanner) (*domain.CheckpointEvent, error) {
	var ev domain.CheckpointEvent
	var operator, checker, ts sql.NullString
	var elapsed sql.NullInt64
	var state string
	var lat, lon sql.NullFloat64

	err := row.Scan(&ev.EventID, &ev.VehicleID, &ev.CheckpointID, &operator, &checker,
		&ts, &elapsed, &ev.Fee, &state, &lat, &lon)
	if err != nil {
		return nil, err
	}

	ev.OperatorID = stringFromNull(operator)
	ev.CheckerID = stringFromNull(checker)
	ev.PaymentState = domain.PaymentState(state)
	if ts.Valid {
		if ev.Timestamp, err = parseTime(ts.String); err != nil {
			return nil, err
		}
	}
	if elapsed.Valid {
		m := int(elapsed.Int64)
		ev.ElapsedMinutes = &m
	}
	if lat.Valid {
		ev.Lat = &lat.Float64
	}
	if lon.Valid {
		ev.Lon = &lon.Float64
	}

	return &ev, nil
}

func (s *SQLLedgerRepository) AppendEvent(ctx context.Context, ev *domain.CheckpointEvent) (_ *domain.CheckpointEvent, err error) {
	defer obs.Time(ctx, "ledger.AppendEvent")(&err)

	if s.DB == nil {
		return nil, errors.New("ledger repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append event: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Touch the vehicle row first: on engines with row locking this
	// serializes concurrent appends for one vehicle, so the prior-event read
	// below cannot interleave with another append's insert.
	res, err := tx.ExecContext(ctx, `
	UPDATE vehicles SET claim_holder_id = claim_holder_id WHERE vehicle_id = ?;
	`, ev.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("append event: lock vehicle row: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("append event: rows affected: %w", err)
	} else if n == 0 {
		return nil, domain.NotFoundf("vehicle %q", ev.VehicleID)
	}

	var priorTS sql.NullString
	err = tx.QueryRowContext(ctx, `
	SELECT ts FROM checkpoint_events
	WHERE vehicle_id = ?
	ORDER BY ts DESC, event_id DESC
	LIMIT 1;
	`, ev.VehicleID).Scan(&priorTS)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("append event: read prior event: %w", err)
	}

	ev.ElapsedMinutes = nil
	if priorTS.Valid {
		prior, err := parseTime(priorTS.String)
		if err != nil {
			return nil, fmt.Errorf("append event: %w", err)
		}
		minutes := domain.ElapsedMinutes(prior, ev.Timestamp)
		ev.ElapsedMinutes = &minutes
	}

	var elapsed any
	if ev.ElapsedMinutes != nil {
		elapsed = *ev.ElapsedMinutes
	}
	var lat, lon any
	if ev.Lat != nil {
		lat = *ev.Lat
	}
	if ev.Lon != nil {
		lon = *ev.Lon
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO checkpoint_events (
		event_id, vehicle_id, checkpoint_id, operator_id, checker_id,
		ts, elapsed_minutes, fee, payment_state, lat, lon
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, ev.EventID, ev.VehicleID, ev.CheckpointID, nullString(ev.OperatorID), nullString(ev.CheckerID),
		formatTime(ev.Timestamp), elapsed, ev.Fee, string(ev.PaymentState), lat, lon)
	if err != nil {
		return nil, fmt.Errorf("append event: insert event_id=%s: %w", ev.EventID, err)
	}

	if ev.CheckerID != nil {
		var income int64
		if ev.PaymentState == domain.PaymentPaid {
			income = ev.Fee
		}
		if err := creditChecker(ctx, tx, *ev.CheckerID, 1, income); err != nil {
			return nil, fmt.Errorf("append event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append event: commit tx: %w", err)
	}

	return ev, nil
}

func (s *SQLLedgerRepository) MarkEventPaid(ctx context.Context, eventID string) (_ *domain.CheckpointEvent, transitioned bool, err error) {
	defer obs.Time(ctx, "ledger.MarkEventPaid")(&err)

	if s.DB == nil {
		return nil, false, errors.New("ledger repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("mark event paid: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Conditional transition; rows affected gates the income increment so
	// an event is credited at most once.
	res, err := tx.ExecContext(ctx, `
	UPDATE checkpoint_events
	SET payment_state = ?
	WHERE event_id = ? AND payment_state = ?;
	`, string(domain.PaymentPaid), eventID, string(domain.PaymentPending))
	if err != nil {
		return nil, false, fmt.Errorf("mark event paid: update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("mark event paid: rows affected: %w", err)
	}
	transitioned = n > 0

	row := tx.QueryRowContext(ctx, selectEventQuery+`WHERE event_id = ?;`, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, domain.NotFoundf("check-in event %q", eventID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("mark event paid: read event: %w", err)
	}

	if transitioned && ev.CheckerID != nil {
		if err := creditChecker(ctx, tx, *ev.CheckerID, 0, ev.Fee); err != nil {
			return nil, false, fmt.Errorf("mark event paid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("mark event paid: commit tx: %w", err)
	}

	return ev, transitioned, nil
}

func creditChecker(ctx context.Context, tx *sql.Tx, checkerID string, checkIns int64, income int64) error {
	res, err := tx.ExecContext(ctx, `
	UPDATE checkers
	SET total_check_ins = total_check_ins + ?,
	    period_income = period_income + ?
	WHERE checker_id = ?;
	`, checkIns, income, checkerID)
	if err != nil {
		return fmt.Errorf("credit checker_id=%s: %w", checkerID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit checker: rows affected: %w", err)
	}
	if n == 0 {
		return domain.NotFoundf("checker %q", checkerID)
	}

	return nil
}
