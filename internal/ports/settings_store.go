package ports

import "context"

// Port: key/value configuration entries (fee schedule and similar).
type SettingsStore interface {
	// GetInt returns the numeric value for key; ok is false when unset.
	GetInt(ctx context.Context, key string) (value int64, ok bool, err error)
	Put(ctx context.Context, key, value string) error
}
