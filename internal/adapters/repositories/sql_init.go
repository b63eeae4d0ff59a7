package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createOperatorsQuery := `
	CREATE TABLE IF NOT EXISTS operators (
		operator_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'operator',
		active_vehicle_id TEXT,
		active_since TEXT,
		direction TEXT
	);
	`

	createVehiclesQuery := `
	CREATE TABLE IF NOT EXISTS vehicles (
		vehicle_id TEXT PRIMARY KEY,
		plate TEXT NOT NULL UNIQUE,
		claim_holder_id TEXT,
		claim_direction TEXT,
		claim_since TEXT,
		locked_until TEXT
	);
	`

	createEligibilityQuery := `
	CREATE TABLE IF NOT EXISTS vehicle_eligibility (
		vehicle_id TEXT NOT NULL,
		operator_id TEXT NOT NULL,
		PRIMARY KEY (vehicle_id, operator_id)
	);
	`

	createCheckersQuery := `
	CREATE TABLE IF NOT EXISTS checkers (
		checker_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		total_check_ins INTEGER NOT NULL DEFAULT 0,
		period_income INTEGER NOT NULL DEFAULT 0
	);
	`

	createCheckpointsQuery := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		checkpoint_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sequence INTEGER NOT NULL DEFAULT 0,
		assigned_checker_id TEXT,
		lat REAL,
		lon REAL
	);
	`

	createEventsQuery := `
	CREATE TABLE IF NOT EXISTS checkpoint_events (
		event_id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		checkpoint_id TEXT NOT NULL,
		operator_id TEXT,
		checker_id TEXT,
		ts TEXT NOT NULL,
		elapsed_minutes INTEGER,
		fee INTEGER NOT NULL,
		payment_state TEXT NOT NULL,
		lat REAL,
		lon REAL
	);
	`

	createEventsIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_checkpoint_events_vehicle_ts
	ON checkpoint_events(vehicle_id, ts);
	`

	createSettingsQuery := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	statements := []string{
		createOperatorsQuery,
		createVehiclesQuery,
		createEligibilityQuery,
		createCheckersQuery,
		createCheckpointsQuery,
		createEventsQuery,
		createEventsIndexQuery,
		createSettingsQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type OperatorSeed struct {
	OperatorID string `json:"operator_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

type CheckerSeed struct {
	CheckerID string `json:"checker_id"`
	Name      string `json:"name"`
}

type VehicleSeed struct {
	VehicleID string   `json:"vehicle_id"`
	Plate     string   `json:"plate"`
	Eligible  []string `json:"eligible_operators"`
}

type CheckpointSeed struct {
	CheckpointID string   `json:"checkpoint_id"`
	Name         string   `json:"name"`
	Sequence     int      `json:"sequence"`
	CheckerID    string   `json:"checker_id"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
}

type FleetSeed struct {
	Operators   []OperatorSeed    `json:"operators"`
	Checkers    []CheckerSeed     `json:"checkers"`
	Vehicles    []VehicleSeed     `json:"vehicles"`
	Checkpoints []CheckpointSeed  `json:"checkpoints"`
	Settings    map[string]string `json:"settings"`
}

// Populate the database with fleet data from a JSON file.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed fleet: read %q: %w", jsonPath, err)
	}

	var seed FleetSeed
	if err := json.Unmarshal(bytes, &seed); err != nil {
		return fmt.Errorf("seed fleet: parse json: %w", err)
	}

	return SeedFleet(db, &seed)
}

// Apply a fleet seed, replacing identity rows but never touching live claim
// or accounting columns.
func SeedFleet(db *sql.DB, seed *FleetSeed) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed fleet: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, op := range seed.Operators {
		id := strings.TrimSpace(op.OperatorID)
		if id == "" {
			return fmt.Errorf("seed fleet: operator at index %d: operator_id cannot be empty", i+1)
		}
		role := strings.TrimSpace(op.Role)
		if role == "" {
			role = "operator"
		}
		_, err := tx.Exec(`
		INSERT INTO operators (operator_id, name, role)
		VALUES (?, ?, ?)
		ON CONFLICT (operator_id) DO UPDATE SET name = excluded.name, role = excluded.role;
		`, id, strings.TrimSpace(op.Name), role)
		if err != nil {
			return fmt.Errorf("seed fleet: insert operator_id=%s: %w", id, err)
		}
	}

	for i, ck := range seed.Checkers {
		id := strings.TrimSpace(ck.CheckerID)
		if id == "" {
			return fmt.Errorf("seed fleet: checker at index %d: checker_id cannot be empty", i+1)
		}
		_, err := tx.Exec(`
		INSERT INTO checkers (checker_id, name)
		VALUES (?, ?)
		ON CONFLICT (checker_id) DO UPDATE SET name = excluded.name;
		`, id, strings.TrimSpace(ck.Name))
		if err != nil {
			return fmt.Errorf("seed fleet: insert checker_id=%s: %w", id, err)
		}
	}

	for i, v := range seed.Vehicles {
		id := strings.TrimSpace(v.VehicleID)
		if id == "" {
			return fmt.Errorf("seed fleet: vehicle at index %d: vehicle_id cannot be empty", i+1)
		}
		plate := strings.ToUpper(strings.TrimSpace(v.Plate))
		if plate == "" {
			return fmt.Errorf("seed fleet: vehicle_id=%s: plate cannot be empty", id)
		}
		_, err := tx.Exec(`
		INSERT INTO vehicles (vehicle_id, plate)
		VALUES (?, ?)
		ON CONFLICT (vehicle_id) DO UPDATE SET plate = excluded.plate;
		`, id, plate)
		if err != nil {
			return fmt.Errorf("seed fleet: insert vehicle_id=%s: %w", id, err)
		}

		for _, opID := range v.Eligible {
			opID = strings.TrimSpace(opID)
			if opID == "" {
				continue
			}
			_, err := tx.Exec(`
			INSERT INTO vehicle_eligibility (vehicle_id, operator_id)
			VALUES (?, ?)
			ON CONFLICT (vehicle_id, operator_id) DO NOTHING;
			`, id, opID)
			if err != nil {
				return fmt.Errorf("seed fleet: insert eligibility vehicle_id=%s operator_id=%s: %w", id, opID, err)
			}
		}
	}

	for i, cp := range seed.Checkpoints {
		id := strings.TrimSpace(cp.CheckpointID)
		if id == "" {
			return fmt.Errorf("seed fleet: checkpoint at index %d: checkpoint_id cannot be empty", i+1)
		}
		var checker any
		if s := strings.TrimSpace(cp.CheckerID); s != "" {
			checker = s
		}
		_, err := tx.Exec(`
		INSERT INTO checkpoints (checkpoint_id, name, sequence, assigned_checker_id, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (checkpoint_id) DO UPDATE SET
			name = excluded.name,
			sequence = excluded.sequence,
			assigned_checker_id = excluded.assigned_checker_id,
			lat = excluded.lat,
			lon = excluded.lon;
		`, id, strings.TrimSpace(cp.Name), cp.Sequence, checker, cp.Lat, cp.Lon)
		if err != nil {
			return fmt.Errorf("seed fleet: insert checkpoint_id=%s: %w", id, err)
		}
	}

	for key, value := range seed.Settings {
		key = strings.TrimSpace(key)
		if key == "" {
			return errors.New("seed fleet: empty settings key")
		}
		_, err := tx.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value;
		`, key, value)
		if err != nil {
			return fmt.Errorf("seed fleet: insert setting key=%s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed fleet: commit tx: %w", err)
	}

	return nil
}
