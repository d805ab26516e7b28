package mockserver

import "sync"

// Sessions maps login session ids to the phone number chosen on the login page.
type Sessions struct {
	mu     sync.RWMutex
	phones map[string]string
}

// NewSessions returns an empty session table.
func NewSessions() *Sessions {
	return &Sessions{phones: make(map[string]string)}
}

// Bind records that sessionID logged in as phone.
func (s *Sessions) Bind(sessionID, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phones[sessionID] = phone
}

// Phone returns the phone bound to sessionID.
func (s *Sessions) Phone(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.phones[sessionID]
	return p, ok
}

// Len returns the number of bound sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.phones)
}
