package common

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var entrySeq atomic.Uint64

// NewActivityID generates a collision-resistant id for an activity entry.
// Format: <prefix>_<unix-millis>_<seq>
//
// The monotonic sequence keeps ids unique even when several entries are
// synthesized within the same millisecond, so list keys stay stable under
// rapid-fire updates.
func NewActivityID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d", prefix, now.UnixMilli(), entrySeq.Add(1))
}

// NewJobID generates a unique job ID with the "job_" prefix.
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}
