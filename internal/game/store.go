package game

import (
	"sync"

	"github.com/google/uuid"
)

// SessionStore is the in-memory registry of live sessions, the single source
// of truth during gameplay. Injected into the engine so tests can substitute
// a pre-populated store.
type SessionStore interface {
	Get(id uuid.UUID) (*Session, bool)
	GetByCode(code string) (*Session, bool)
	Put(s *Session)
	Delete(id uuid.UUID)
	List() []*Session
}

// MemoryStore is the default SessionStore backed by process-local maps.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Session
	byCode map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[uuid.UUID]*Session),
		byCode: make(map[string]*Session),
	}
}

// Get returns the live session for an id.
func (m *MemoryStore) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// GetByCode returns the live session for a join code.
func (m *MemoryStore) GetByCode(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byCode[code]
	return s, ok
}

// Put registers a session under both its id and join code.
func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = s
	if s.JoinCode != "" {
		m.byCode[s.JoinCode] = s
	}
}

// Delete evicts a session from the registry.
func (m *MemoryStore) Delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		delete(m.byID, id)
		if cur, ok := m.byCode[s.JoinCode]; ok && cur == s {
			delete(m.byCode, s.JoinCode)
		}
	}
}

// List returns all live sessions in unspecified order.
func (m *MemoryStore) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out
}
