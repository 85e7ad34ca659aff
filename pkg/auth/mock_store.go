package auth

import (
	"sync"
)

// MockStore implements KeyStore in memory for tests
type MockStore struct {
	keys map[string]*APIKey
	mu   sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock key store
func NewMockStore() *MockStore {
	return &MockStore{
		keys: make(map[string]*APIKey),
	}
}

func (m *MockStore) Name() string { return "mock" }

func (m *MockStore) Store(key *APIKey) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if key == nil || key.Name == "" {
		return ErrInvalidKey
	}

	keyCopy := *key
	m.keys[key.Name] = &keyCopy
	return nil
}

func (m *MockStore) Retrieve(name string) (*APIKey, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		return nil, ErrInvalidKey
	}

	key, exists := m.keys[name]
	if !exists {
		return nil, ErrKeyNotFound
	}
	keyCopy := *key
	return &keyCopy, nil
}

func (m *MockStore) List() ([]*APIKey, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]*APIKey, 0, len(m.keys))
	for _, key := range m.keys {
		keyCopy := *key
		keys = append(keys, &keyCopy)
	}
	return keys, nil
}

func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return ErrInvalidKey
	}
	if _, exists := m.keys[name]; !exists {
		return ErrKeyNotFound
	}
	delete(m.keys, name)
	return nil
}

func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.keys[name]
	return exists
}

// Count returns the number of stored keys
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// NewMockManager creates a Manager over a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
