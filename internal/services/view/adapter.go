// -----------------------------------------------------------------------
// Presentation Adapter - pure mapping from tracker state to a view model
// -----------------------------------------------------------------------

package view

import (
	"github.com/ternarybob/specto/internal/models"
)

// Input bundles everything the adapter projects. Callers assemble it from
// the reconciler, the command dispatcher and the banner state they track.
type Input struct {
	Current  *models.JobSnapshot
	LastRun  *models.JobSnapshot
	Activity []models.ActivityEntry
	Pending  map[models.CommandAction]bool

	ConnectionError string
	ActionError     string

	// FirstLoad is true until the first poll response (success or failure)
	// has been classified.
	FirstLoad bool
}

// Build produces the renderable view model. It has no side effects and
// holds no state: the same input always yields the same view.
//
// When there is no job and no last run but the tracker is still on its
// first load, or the connection is down, the view renders a placeholder in
// the running visual state instead of disappearing - going blank on mount
// and reappearing a poll later reads as flicker.
func Build(in Input) models.TrackerView {
	v := models.TrackerView{
		ConnectionError: in.ConnectionError,
		ActionError:     in.ActionError,
		PausePending:    in.Pending[models.ActionPause],
		ResumePending:   in.Pending[models.ActionResume],
		CancelPending:   in.Pending[models.ActionCancel],
		RetryPending:    in.Pending[models.ActionRetry],
	}

	v.Activity = make([]models.ActivityEntry, len(in.Activity))
	copy(v.Activity, in.Activity)

	switch {
	case in.Current != nil:
		v.Visible = true
		v.Running = true
		fillFromSnapshot(&v, in.Current)
		v.CanControl = in.Current.Status.IsActive()

	case in.LastRun != nil:
		v.Visible = true
		v.Running = false
		fillFromSnapshot(&v, in.LastRun)
		v.CanRetry = in.LastRun.Status.IsTerminal()
		if in.LastRun.Status == models.JobStatusFailed && in.LastRun.LastError != "" {
			v.JobError = in.LastRun.LastError
		}

	case in.FirstLoad || in.ConnectionError != "":
		// Nothing to show yet, but disappearing would flicker.
		v.Visible = true
		v.Running = true
		v.Placeholder = true

	default:
		v.Visible = false
	}

	return v
}

func fillFromSnapshot(v *models.TrackerView, snap *models.JobSnapshot) {
	v.JobID = snap.JobID
	v.Status = snap.Status
	v.Percent = snap.Percent
	v.Discovered = snap.Discovered
	v.Fetched = snap.Fetched
	v.Saved = snap.Saved
	v.FailedItems = snap.FailedItems
	v.ETASeconds = snap.ETASeconds
	v.LastURL = snap.LastURL
}
