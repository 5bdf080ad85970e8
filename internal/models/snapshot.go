// -----------------------------------------------------------------------
// Job Snapshot - Immutable point-in-time view of a crawl job
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// JobStatus represents the state of a crawl job as reported by the backend.
type JobStatus string

const (
	JobStatusRunning  JobStatus = "running"
	JobStatusPaused   JobStatus = "paused"
	JobStatusCanceled JobStatus = "canceled"
	JobStatusFailed   JobStatus = "failed"
	JobStatusDone     JobStatus = "done"
)

// IsTerminal reports whether the job can no longer resume.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCanceled || s == JobStatusFailed || s == JobStatusDone
}

// IsActive reports whether the job is still running or paused.
func (s JobStatus) IsActive() bool {
	return s == JobStatusRunning || s == JobStatusPaused
}

// JobSnapshot is one point-in-time description of a crawl job.
// Snapshots are produced by the backend (poll responses, command responses,
// push frames) and are never mutated after receipt.
//
// Counters are cumulative for the lifetime of a job: for a fixed JobID,
// any snapshot with a later UpdatedAt carries counters greater than or
// equal to those of any earlier snapshot. UpdatedAt is assigned by the
// producer and is the only field used for ordering - client receipt time
// plays no part in reconciliation.
type JobSnapshot struct {
	JobID   string `json:"job_id" validate:"required"`
	OwnerID string `json:"owner_id"` // Parent knowledge base this job populates

	Status JobStatus `json:"status" validate:"required,oneof=running paused canceled failed done"`

	// Cumulative counters, never decreasing within one JobID
	Discovered  int `json:"discovered" validate:"gte=0"`
	Fetched     int `json:"fetched" validate:"gte=0"`
	Saved       int `json:"saved" validate:"gte=0"`
	FailedItems int `json:"failed_items" validate:"gte=0"`

	// Extracted is an optional extraction counter. Backends that do not
	// report it omit the field; consumers fall back to Fetched.
	Extracted *int `json:"extracted,omitempty"`

	// Last-observed values, may repeat or be cleared between snapshots
	LastURL   string `json:"last_url,omitempty"`
	LastError string `json:"last_error,omitempty"`

	// Derived progress indicators, absent when the backend cannot estimate
	Percent    float64 `json:"percent,omitempty"`
	ETASeconds int     `json:"eta_seconds,omitempty"`

	// UpdatedAt is the producer-assigned timestamp used for ordering
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

// Validate validates the snapshot using go-playground/validator.
// Returns an error if required fields are missing or invalid.
func (s *JobSnapshot) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ExtractedCount returns the extraction counter, falling back to Fetched
// when the backend omits it.
func (s *JobSnapshot) ExtractedCount() int {
	if s.Extracted != nil {
		return *s.Extracted
	}
	return s.Fetched
}

// Equal reports whether two snapshots carry an identical payload.
// Used for duplicate suppression when timestamps tie.
func (s *JobSnapshot) Equal(other *JobSnapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Extracted != nil || other.Extracted != nil {
		if s.Extracted == nil || other.Extracted == nil || *s.Extracted != *other.Extracted {
			return false
		}
	}
	return s.JobID == other.JobID &&
		s.OwnerID == other.OwnerID &&
		s.Status == other.Status &&
		s.Discovered == other.Discovered &&
		s.Fetched == other.Fetched &&
		s.Saved == other.Saved &&
		s.FailedItems == other.FailedItems &&
		s.LastURL == other.LastURL &&
		s.LastError == other.LastError &&
		s.Percent == other.Percent &&
		s.ETASeconds == other.ETASeconds &&
		s.UpdatedAt.Equal(other.UpdatedAt)
}

// Clone returns a copy of the snapshot. The reconciler hands clones to
// observers so later updates cannot race with a holder of the value.
func (s *JobSnapshot) Clone() *JobSnapshot {
	if s == nil {
		return nil
	}
	copied := *s
	if s.Extracted != nil {
		v := *s.Extracted
		copied.Extracted = &v
	}
	return &copied
}

// CountersNonDecreasingFrom reports whether counters in s are all greater
// than or equal to those in prev. Both snapshots must describe the same job.
func (s *JobSnapshot) CountersNonDecreasingFrom(prev *JobSnapshot) bool {
	if prev == nil {
		return true
	}
	return s.Discovered >= prev.Discovered &&
		s.Fetched >= prev.Fetched &&
		s.Saved >= prev.Saved &&
		s.FailedItems >= prev.FailedItems
}
