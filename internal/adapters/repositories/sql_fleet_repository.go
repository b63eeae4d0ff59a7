package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-control-service/internal/domain"
	"fleet-control-service/internal/platform/obs"
)

// SQL-backed implementation of the FleetRepository port. Claim and release
// are conditional updates inside a single transaction: the WHERE clauses are
// the compare-and-swap, and a zero rows-affected result is classified into a
// typed error afterwards.
type SQLFleetRepository struct{ DB *sql.DB }

func NewSQLFleetRepository(db *sql.DB) *SQLFleetRepository {
	return &SQLFleetRepository{DB: db}
}

func (s *SQLFleetRepository) GetOperator(ctx context.Context, operatorID string) (*domain.Operator, error) {
	if s.DB == nil {
		return nil, errors.New("fleet repository: DB is nil")
	}

	query := `
	SELECT operator_id, name, role, active_vehicle_id, active_since, direction
	FROM operators
	WHERE operator_id = ?;
	`
	row := s.DB.QueryRowContext(ctx, query, operatorID)

	var op domain.Operator
	var role string
	var activeVehicle, activeSince, direction sql.NullString
	err := row.Scan(&op.OperatorID, &op.Name, &role, &activeVehicle, &activeSince, &direction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("operator %q", operatorID)
	}
	if err != nil {
		return nil, fmt.Errorf("get operator: scan row: %w", err)
	}

	op.Role = domain.Role(role)
	op.ActiveVehicleID = stringFromNull(activeVehicle)
	if op.ActiveSince, err = timeFromNull(activeSince); err != nil {
		return nil, fmt.Errorf("get operator: %w", err)
	}
	if direction.Valid {
		op.Direction = domain.Direction(direction.String)
	}

	return &op, nil
}

func (s *SQLFleetRepository) GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	return s.getVehicleBy(ctx, "vehicle_id", vehicleID)
}

func (s *SQLFleetRepository) GetVehicleByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	return s.getVehicleBy(ctx, "plate", strings.ToUpper(strings.TrimSpace(plate)))
}

func (s *SQLFleetRepository) getVehicleBy(ctx context.Context, column, value string) (*domain.Vehicle, error) {
	if s.DB == nil {
		return nil, errors.New("fleet repository: DB is nil")
	}

	query := fmt.Sprintf(`
	SELECT vehicle_id, plate, claim_holder_id, claim_direction, claim_since, locked_until
	FROM vehicles
	WHERE %s = ?;
	`, column)
	row := s.DB.QueryRowContext(ctx, query, value)

	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("vehicle with %s %q", column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}

	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (*domain.Vehicle, error) {
	var v domain.Vehicle
	var holder, direction, since, lockedUntil sql.NullString
	if err := row.Scan(&v.VehicleID, &v.Plate, &holder, &direction, &since, &lockedUntil); err != nil {
		return nil, err
	}

	v.ClaimHolderID = stringFromNull(holder)
	if direction.Valid {
		v.ClaimDirection = domain.Direction(direction.String)
	}

	var err error
	if v.ClaimSince, err = timeFromNull(since); err != nil {
		return nil, err
	}
	if v.LockedUntil, err = timeFromNull(lockedUntil); err != nil {
		return nil, err
	}

	return &v, nil
}

func (s *SQLFleetRepository) IsEligible(ctx context.Context, operatorID, vehicleID string) (bool, error) {
	if s.DB == nil {
		return false, errors.New("fleet repository: DB is nil")
	}

	query := `
	SELECT 1
	FROM vehicle_eligibility
	WHERE vehicle_id = ? AND operator_id = ?;
	`
	var one int
	err := s.DB.QueryRowContext(ctx, query, vehicleID, operatorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is eligible: query eligibility: %w", err)
	}

	return true, nil
}

func (s *SQLFleetRepository) Claim(ctx context.Context, operatorID, vehicleID string, direction domain.Direction, since time.Time) (err error) {
	defer obs.Time(ctx, "fleet.Claim")(&err)

	if s.DB == nil {
		return errors.New("fleet repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("claim vehicle: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The WHERE clause is the claim CAS: free vehicle, lock window not
	// blocking the current day.
	lockFloor := formatTime(domain.StartOfDay(since))
	res, err := tx.ExecContext(ctx, `
	UPDATE vehicles
	SET claim_holder_id = ?, claim_direction = ?, claim_since = ?
	WHERE vehicle_id = ?
	  AND claim_holder_id IS NULL
	  AND (locked_until IS NULL OR locked_until < ?);
	`, operatorID, string(direction), formatTime(since), vehicleID, lockFloor)
	if err != nil {
		return fmt.Errorf("claim vehicle: update vehicle: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim vehicle: rows affected: %w", err)
	}
	if n == 0 {
		return s.classifyClaimFailure(ctx, tx, operatorID, vehicleID, since)
	}

	res, err = tx.ExecContext(ctx, `
	UPDATE operators
	SET active_vehicle_id = ?, active_since = ?, direction = ?
	WHERE operator_id = ?
	  AND active_vehicle_id IS NULL;
	`, vehicleID, formatTime(since), string(direction), operatorID)
	if err != nil {
		return fmt.Errorf("claim vehicle: update operator: %w", err)
	}

	n, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim vehicle: rows affected: %w", err)
	}
	if n == 0 {
		var active sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT active_vehicle_id FROM operators WHERE operator_id = ?;`, operatorID).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundf("operator %q", operatorID)
		}
		if err != nil {
			return fmt.Errorf("claim vehicle: read operator: %w", err)
		}
		if active.Valid && active.String != vehicleID {
			return domain.Conflictf("operator %q already holds vehicle %q", operatorID, active.String)
		}
		return domain.Conflictf("operator %q claim state changed concurrently", operatorID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("claim vehicle: commit tx: %w", err)
	}

	return nil
}

// classifyClaimFailure turns a failed vehicle CAS into the matching typed
// error. It runs inside the same transaction as the update.
func (s *SQLFleetRepository) classifyClaimFailure(ctx context.Context, tx *sql.Tx, operatorID, vehicleID string, since time.Time) error {
	row := tx.QueryRowContext(ctx, `
	SELECT vehicle_id, plate, claim_holder_id, claim_direction, claim_since, locked_until
	FROM vehicles
	WHERE vehicle_id = ?;
	`, vehicleID)

	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf("vehicle %q", vehicleID)
	}
	if err != nil {
		return fmt.Errorf("claim vehicle: read vehicle: %w", err)
	}

	switch {
	case v.ClaimedBy(operatorID):
		// Lost a race against our own claim; the claim exists, so treat
		// this attempt as the idempotent success it would have been.
		return nil
	case v.Claimed():
		return domain.Conflictf("vehicle %q already claimed by operator %q", vehicleID, *v.ClaimHolderID)
	case v.LockedAt(since):
		return domain.Lockedf("vehicle %q locked until %s", vehicleID, v.LockedUntil.Format(time.RFC3339))
	default:
		return domain.Conflictf("vehicle %q claim state changed concurrently", vehicleID)
	}
}

func (s *SQLFleetRepository) Release(ctx context.Context, operatorID string, lockUntil *time.Time) (vehicleID string, err error) {
	defer obs.Time(ctx, "fleet.Release")(&err)

	if s.DB == nil {
		return "", errors.New("fleet repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("release vehicle: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var active sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT active_vehicle_id FROM operators WHERE operator_id = ?;`, operatorID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NotFoundf("operator %q", operatorID)
	}
	if err != nil {
		return "", fmt.Errorf("release vehicle: read operator: %w", err)
	}
	if !active.Valid {
		return "", domain.InvalidStatef("operator %q has no active claim", operatorID)
	}
	vehicleID = active.String

	_, err = tx.ExecContext(ctx, `
	UPDATE operators
	SET active_vehicle_id = NULL, active_since = NULL, direction = NULL
	WHERE operator_id = ? AND active_vehicle_id = ?;
	`, operatorID, vehicleID)
	if err != nil {
		return "", fmt.Errorf("release vehicle: clear operator: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE vehicles
	SET claim_holder_id = NULL, claim_direction = NULL, claim_since = NULL,
	    locked_until = COALESCE(?, locked_until)
	WHERE vehicle_id = ? AND claim_holder_id = ?;
	`, nullTime(lockUntil), vehicleID, operatorID)
	if err != nil {
		return "", fmt.Errorf("release vehicle: clear vehicle: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("release vehicle: rows affected: %w", err)
	}
	if n == 0 {
		return "", domain.InvalidStatef("vehicle %q no longer held by operator %q", vehicleID, operatorID)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("release vehicle: commit tx: %w", err)
	}

	return vehicleID, nil
}

func (s *SQLFleetRepository) Reopen(ctx context.Context, vehicleID string, now time.Time) (err error) {
	defer obs.Time(ctx, "fleet.Reopen")(&err)

	if s.DB == nil {
		return errors.New("fleet repository: DB is nil")
	}

	lockFloor := formatTime(domain.StartOfDay(now))
	res, err := s.DB.ExecContext(ctx, `
	UPDATE vehicles
	SET locked_until = NULL
	WHERE vehicle_id = ?
	  AND locked_until IS NOT NULL
	  AND locked_until >= ?;
	`, vehicleID, lockFloor)
	if err != nil {
		return fmt.Errorf("reopen vehicle: update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reopen vehicle: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetVehicle(ctx, vehicleID); err != nil {
		return err
	}
	return domain.InvalidStatef("vehicle %q has no active lock window", vehicleID)
}

func (s *SQLFleetRepository) SetDirection(ctx context.Context, operatorID string, direction domain.Direction) (err error) {
	defer obs.Time(ctx, "fleet.SetDirection")(&err)

	if s.DB == nil {
		return errors.New("fleet repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set direction: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var active sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT active_vehicle_id FROM operators WHERE operator_id = ?;`, operatorID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf("operator %q", operatorID)
	}
	if err != nil {
		return fmt.Errorf("set direction: read operator: %w", err)
	}
	if !active.Valid {
		return domain.InvalidStatef("operator %q has no active claim", operatorID)
	}

	_, err = tx.ExecContext(ctx, `UPDATE operators SET direction = ? WHERE operator_id = ?;`, string(direction), operatorID)
	if err != nil {
		return fmt.Errorf("set direction: update operator: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	UPDATE vehicles SET claim_direction = ?
	WHERE vehicle_id = ? AND claim_holder_id = ?;
	`, string(direction), active.String, operatorID)
	if err != nil {
		return fmt.Errorf("set direction: update vehicle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set direction: commit tx: %w", err)
	}

	return nil
}
