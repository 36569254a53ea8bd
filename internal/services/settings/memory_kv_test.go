package settings

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/augur/internal/interfaces"
)

// memoryKV is an in-memory KeyValueStorage for backend tests. A
// non-nil setManyErr makes batch writes fail without touching state.
type memoryKV struct {
	mu           sync.Mutex
	values       map[string]string
	updated      time.Time
	setManyErr   error
	setManyCalls int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return value, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.updated = time.Now()
	return nil
}

func (m *memoryKV) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setManyCalls++
	if m.setManyErr != nil {
		return m.setManyErr
	}
	for key, value := range values {
		m.values[key] = value
	}
	m.updated = time.Now()
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	m.updated = time.Now()
	return nil
}

func (m *memoryKV) GetAll(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memoryKV) LastUpdated(context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updated.IsZero() {
		return nil, nil
	}
	updated := m.updated
	return &updated, nil
}
