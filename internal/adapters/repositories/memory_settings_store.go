package repositories

import (
	"context"
	"strconv"
	"sync"
)

// MemorySettingsStore is an in-memory SettingsStore for tests.
type MemorySettingsStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{values: make(map[string]string)}
}

func (m *MemorySettingsStore) GetInt(ctx context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.values[key]
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (m *MemorySettingsStore) Put(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
