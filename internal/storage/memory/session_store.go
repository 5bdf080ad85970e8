package memory

import (
	"context"
	"sync"

	"github.com/ternarybob/specto/internal/interfaces"
)

// SessionStore is an in-memory interfaces.SessionStore. It backs tests and
// environments without a writable disk; contents last for the process only.
type SessionStore struct {
	mu   sync.RWMutex
	keys map[string]bool
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		keys: make(map[string]bool),
	}
}

// Add records a key. Adding an existing key is a no-op.
func (s *SessionStore) Add(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = true
	return nil
}

// Has reports whether a key has been recorded.
func (s *SessionStore) Has(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[key], nil
}

var _ interfaces.SessionStore = (*SessionStore)(nil)
