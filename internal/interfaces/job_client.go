package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/specto/internal/models"
)

// ErrMissingJobPayload is returned when the backend reports a running job
// but omits the snapshot. Callers treat it like any other transport error.
var ErrMissingJobPayload = errors.New("backend reported running but omitted job payload")

// ErrNoTrackedJob is returned by the command dispatcher when an action
// requires a job and none is currently tracked.
var ErrNoTrackedJob = errors.New("no job is currently tracked")

// JobClient reads job activity and issues control commands against the
// crawl backend. Implementations must honor context cancellation so the
// poller can bound in-flight requests to one per target.
type JobClient interface {
	// GetJobActivity fetches the current job activity for a knowledge base.
	GetJobActivity(ctx context.Context, ownerID string) (*models.JobActivityResponse, error)

	// SendCommand issues a control action for a job and returns the
	// resulting snapshot.
	SendCommand(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error)
}
