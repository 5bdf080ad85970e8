package models

import "time"

// ActivityKind classifies an activity feed entry.
type ActivityKind string

const (
	ActivityKindStatus ActivityKind = "status"
	ActivityKindInfo   ActivityKind = "info"
	ActivityKindError  ActivityKind = "error"
)

// ActivityLimit is the maximum number of entries retained per active job,
// newest first.
const ActivityLimit = 5

// ActivityEntry is a derived, display-only record in the activity feed.
// Entries are ephemeral: they are synthesized from snapshot diffs, never
// persisted, and cleared whenever the tracked job changes or terminates.
type ActivityEntry struct {
	ID        string       `json:"id"`
	Kind      ActivityKind `json:"kind"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}
