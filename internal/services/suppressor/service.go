// -----------------------------------------------------------------------
// Visibility Suppressor - session-scoped set of dismissed cancellations
// -----------------------------------------------------------------------

package suppressor

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/interfaces"
)

const hiddenKeyPrefix = "hidden:"

// Service remembers which jobs were canceled by explicit user action so a
// later status fetch for the same owner cannot resurrect the dismissed
// cancellation banner. Entries live for the application session and are
// never removed programmatically.
//
// Store failures degrade to a no-op: a broken session store must never
// take the tracker down, it only loses suppression.
type Service struct {
	store  interfaces.SessionStore
	logger arbor.ILogger
}

// NewService creates a new visibility suppressor over the given store.
func NewService(store interfaces.SessionStore, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// MarkHidden records that the job's terminal state must not be shown again.
func (s *Service) MarkHidden(ctx context.Context, jobID string) {
	if jobID == "" {
		return
	}

	if err := s.store.Add(ctx, hiddenKeyPrefix+jobID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to persist hidden job, suppression lost for this id")
		return
	}

	s.logger.Debug().Str("job_id", jobID).Msg("Job marked hidden")
}

// IsHidden reports whether the job was previously dismissed this session.
func (s *Service) IsHidden(ctx context.Context, jobID string) bool {
	if jobID == "" {
		return false
	}

	hidden, err := s.store.Has(ctx, hiddenKeyPrefix+jobID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to read hidden job set, treating job as visible")
		return false
	}

	return hidden
}
