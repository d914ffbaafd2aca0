package session

import "sync"

// Manager owns the per-user sessions. Each session must only be advanced by
// the single worker processing that user's events; the manager's lock guards
// the map, not the sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: map[int64]*Session{}}
}

// Get returns the session for userID, creating it on first contact. The
// display name is set once and kept across checklist runs.
func (m *Manager) Get(userID int64, displayName string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = New(userID, displayName)
		m.sessions[userID] = s
	}
	return s
}
