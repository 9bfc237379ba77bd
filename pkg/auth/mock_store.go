package auth

import (
	"sync"
)

// MockStore implements SessionStore in memory for tests
type MockStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock session store
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

// Store saves a copy of the session
func (m *MockStore) Store(session *Session) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil || session.Name == "" {
		return ErrInvalidSession
	}

	sessionCopy := *session
	m.sessions[session.Name] = &sessionCopy

	return nil
}

// Retrieve returns a copy of the named session
func (m *MockStore) Retrieve(name string) (*Session, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		return nil, ErrInvalidSession
	}

	session, exists := m.sessions[name]
	if !exists {
		return nil, ErrSessionNotFound
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

// List returns copies of all sessions
func (m *MockStore) List() ([]*Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*Session
	for _, session := range m.sessions {
		sessionCopy := *session
		sessions = append(sessions, &sessionCopy)
	}

	return sessions, nil
}

// Delete removes the named session
func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return ErrInvalidSession
	}

	if _, exists := m.sessions[name]; !exists {
		return ErrSessionNotFound
	}

	delete(m.sessions, name)
	return nil
}

// Exists checks if the named session is present
func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.sessions[name]
	return exists
}

// Count returns the number of stored sessions
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// NewMockManager creates a Manager with a single mock store
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return NewManagerWithStores(mockStore), mockStore
}
