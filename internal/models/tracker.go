package models

// StateChange is the payload delivered to observers on every reconciler
// transition. Running and Job describe the active job (Job is nil once the
// job terminates); LastRun carries the terminal snapshot when one is held.
type StateChange struct {
	Running bool         `json:"running"`
	Job     *JobSnapshot `json:"job"`
	LastRun *JobSnapshot `json:"last_run,omitempty"`
}

// SavedDelta is delivered whenever the cumulative saved counter increases.
// Hosts use it to refresh document counts that live outside this tracker.
type SavedDelta struct {
	Delta int          `json:"delta"`
	Job   *JobSnapshot `json:"job"`
}

// TrackerView is the renderable view model produced by the presentation
// adapter. It is a pure projection of tracker state - no behavior attaches
// to it and building one has no side effects.
type TrackerView struct {
	// Visible is false only when there is nothing to show at all: no job,
	// no last run, past the first load, and no connection trouble.
	Visible bool `json:"visible"`

	// Running mirrors the visual state: true for an active job and for the
	// initial-load placeholder (which renders as running to avoid flicker).
	Running     bool `json:"running"`
	Placeholder bool `json:"placeholder"`

	JobID   string    `json:"job_id,omitempty"`
	Status  JobStatus `json:"status,omitempty"`
	Percent float64   `json:"percent"`

	Discovered  int `json:"discovered"`
	Fetched     int `json:"fetched"`
	Saved       int `json:"saved"`
	FailedItems int `json:"failed_items"`
	ETASeconds  int `json:"eta_seconds"`

	LastURL string `json:"last_url,omitempty"`

	// Control affordances
	CanControl    bool `json:"can_control"` // pause/resume/cancel
	CanRetry      bool `json:"can_retry"`
	PausePending  bool `json:"pause_pending"`
	ResumePending bool `json:"resume_pending"`
	CancelPending bool `json:"cancel_pending"`
	RetryPending  bool `json:"retry_pending"`

	// Banners
	ConnectionError string `json:"connection_error,omitempty"`
	ActionError     string `json:"action_error,omitempty"`
	JobError        string `json:"job_error,omitempty"`

	Activity []ActivityEntry `json:"activity"`
}
