package session

import (
	"maps"
	"sync"
)

// Session is one client's key/value bag
type Session struct {
	ID string

	mu     sync.Mutex
	values map[string]string
}

func newSession(id string) *Session {
	return &Session{
		ID:     id,
		values: make(map[string]string),
	}
}

func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Update runs fn with exclusive access to the bag, for read-modify-write
// sequences such as counters.
func (s *Session) Update(fn func(values map[string]string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.values)
}

// Snapshot returns a copy of the bag
func (s *Session) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
