// -----------------------------------------------------------------------
// Session Store - Badger-backed append-only key set
// -----------------------------------------------------------------------

package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// sessionKey is the stored record. CreatedAt is kept for diagnostics only;
// membership is the whole contract.
type sessionKey struct {
	Key       string    `badgerhold:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore implements interfaces.SessionStore over BadgerDB. It
// survives process and component restarts within one application session;
// callers that need a fresh session run with reset_on_startup.
type SessionStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStore creates a new Badger-backed session store.
func NewSessionStore(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStore {
	return &SessionStore{
		db:     db,
		logger: logger,
	}
}

// normalizeKey converts a key to lowercase for case-insensitive storage
func (s *SessionStore) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Add records a key. Re-adding an existing key is a no-op, which keeps the
// store append-only under concurrent writers.
func (s *SessionStore) Add(ctx context.Context, key string) error {
	normalizedKey := s.normalizeKey(key)
	if normalizedKey == "" {
		return fmt.Errorf("key cannot be empty")
	}

	record := sessionKey{
		Key:       normalizedKey,
		CreatedAt: time.Now(),
	}

	err := s.db.Store().Insert(normalizedKey, &record)
	if err == badgerhold.ErrKeyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add session key: %w", err)
	}

	return nil
}

// Has reports whether a key has been recorded.
func (s *SessionStore) Has(ctx context.Context, key string) (bool, error) {
	normalizedKey := s.normalizeKey(key)

	var record sessionKey
	err := s.db.Store().Get(normalizedKey, &record)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session key: %w", err)
	}

	return true, nil
}
