// -----------------------------------------------------------------------
// Session Store - append-only key set scoped to one application session
// -----------------------------------------------------------------------

package interfaces

import "context"

// SessionStore is the minimal persistence surface the visibility
// suppressor needs: an append-only set of keys that survives component
// restarts within one application session. Implementations must not be
// required to survive a full application restart.
//
// Writes are append-only, so concurrent writers cannot corrupt the set.
type SessionStore interface {
	// Add records a key. Adding an existing key is a no-op.
	Add(ctx context.Context, key string) error

	// Has reports whether a key has been recorded.
	Has(ctx context.Context, key string) (bool, error)
}
