package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SQLSettingsRepository is a SQL-backed key/value settings store. The fee
// schedule lives here.
type SQLSettingsRepository struct{ DB *sql.DB }

func NewSQLSettingsRepository(db *sql.DB) *SQLSettingsRepository {
	return &SQLSettingsRepository{DB: db}
}

func (s *SQLSettingsRepository) GetInt(ctx context.Context, key string) (int64, bool, error) {
	if s.DB == nil {
		return 0, false, errors.New("settings repository: DB is nil")
	}

	var raw string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?;`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get setting %q: query settings table: %w", key, err)
	}

	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("get setting %q: value %q is not an integer: %w", key, raw, err)
	}

	return value, true, nil
}

func (s *SQLSettingsRepository) Put(ctx context.Context, key, value string) error {
	if s.DB == nil {
		return errors.New("settings repository: DB is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("put setting: empty key")
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO settings (key, value)
	VALUES (?, ?)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value;
	`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %q: %w", key, err)
	}

	return nil
}
