package kvstore

import "sync"

// MemoryStore is an in-memory Store used in tests and on platforms without a
// writable data directory. Values do not survive a process restart.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool

	// FailWrites forces Set/Delete to fail, simulating storage quota errors.
	FailWrites error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get implements Store.Get.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}
	value, found := m.data[key]
	return value, found, nil
}

// Set implements Store.Set.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.data[key] = value
	return nil
}

// Delete implements Store.Delete.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.data, key)
	return nil
}

// Close implements Store.Close.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Snapshot returns a copy of the current contents, for test assertions.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := make(map[string]string, len(m.data))
	for k, v := range m.data {
		snap[k] = v
	}
	return snap
}
