// -----------------------------------------------------------------------
// API payloads - wire shapes exchanged with the job backend
// -----------------------------------------------------------------------

package models

// CommandAction is a control action issued against a job.
type CommandAction string

const (
	ActionPause  CommandAction = "pause"
	ActionResume CommandAction = "resume"
	ActionCancel CommandAction = "cancel"
	ActionRetry  CommandAction = "retry"
)

// Valid reports whether the action is one the backend understands.
func (a CommandAction) Valid() bool {
	switch a {
	case ActionPause, ActionResume, ActionCancel, ActionRetry:
		return true
	}
	return false
}

// LastRun wraps the most recently completed job in an activity response.
type LastRun struct {
	Job *JobSnapshot `json:"job"`
}

// JobActivityResponse is the payload of the job-activity read endpoint.
// When Running is true the backend includes the active job; when false it
// may include the last completed run. Both may be absent on a fresh owner.
type JobActivityResponse struct {
	Running bool         `json:"running"`
	Job     *JobSnapshot `json:"job,omitempty"`
	LastRun *LastRun     `json:"last_run,omitempty"`
}

// JobCommandRequest is the body of a job-control POST.
type JobCommandRequest struct {
	Action CommandAction `json:"action"`
}

// JobCommandResponse is the payload returned by the job-control endpoint.
// The embedded snapshot reflects the job state after the command applied.
type JobCommandResponse struct {
	Job *JobSnapshot `json:"job"`
}
