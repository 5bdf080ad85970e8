package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/specto/internal/models"
)

func runningSnapshot() *models.JobSnapshot {
	return &models.JobSnapshot{
		JobID:      "job-1",
		OwnerID:    "kb-1",
		Status:     models.JobStatusRunning,
		Discovered: 100,
		Fetched:    40,
		Saved:      30,
		Percent:    40,
		ETASeconds: 90,
		LastURL:    "https://example.com/docs",
		UpdatedAt:  time.Now(),
	}
}

func TestBuildRunningJob(t *testing.T) {
	v := Build(Input{Current: runningSnapshot()})

	assert.True(t, v.Visible)
	assert.True(t, v.Running)
	assert.False(t, v.Placeholder)
	assert.True(t, v.CanControl)
	assert.False(t, v.CanRetry)
	assert.Equal(t, "job-1", v.JobID)
	assert.Equal(t, 40, v.Fetched)
	assert.Equal(t, 30, v.Saved)
	assert.Equal(t, "https://example.com/docs", v.LastURL)
}

func TestBuildPausedJobStillControllable(t *testing.T) {
	snap := runningSnapshot()
	snap.Status = models.JobStatusPaused

	v := Build(Input{Current: snap})

	assert.True(t, v.Running, "a paused job still occupies the running slot")
	assert.True(t, v.CanControl)
}

func TestBuildLastRun(t *testing.T) {
	last := runningSnapshot()
	last.Status = models.JobStatusDone

	v := Build(Input{LastRun: last})

	assert.True(t, v.Visible)
	assert.False(t, v.Running)
	assert.False(t, v.CanControl)
	assert.True(t, v.CanRetry)
	assert.Empty(t, v.JobError)
}

func TestBuildFailedLastRunCarriesJobError(t *testing.T) {
	last := runningSnapshot()
	last.Status = models.JobStatusFailed
	last.LastError = "crawl budget exhausted"

	v := Build(Input{LastRun: last})

	assert.True(t, v.CanRetry)
	assert.Equal(t, "crawl budget exhausted", v.JobError)
}

func TestBuildPlaceholderStates(t *testing.T) {
	t.Run("first load", func(t *testing.T) {
		v := Build(Input{FirstLoad: true})
		assert.True(t, v.Visible)
		assert.True(t, v.Running)
		assert.True(t, v.Placeholder)
	})

	t.Run("connection down", func(t *testing.T) {
		v := Build(Input{ConnectionError: "connection refused"})
		assert.True(t, v.Visible)
		assert.True(t, v.Placeholder)
		assert.Equal(t, "connection refused", v.ConnectionError)
	})

	t.Run("settled and idle", func(t *testing.T) {
		v := Build(Input{})
		assert.False(t, v.Visible)
		assert.False(t, v.Placeholder)
	})
}

func TestBuildCurrentWinsOverLastRun(t *testing.T) {
	current := runningSnapshot()
	last := runningSnapshot()
	last.JobID = "job-0"
	last.Status = models.JobStatusDone

	v := Build(Input{Current: current, LastRun: last})

	assert.Equal(t, "job-1", v.JobID)
	assert.True(t, v.Running)
	assert.False(t, v.CanRetry)
}

func TestBuildPendingFlags(t *testing.T) {
	v := Build(Input{
		Current: runningSnapshot(),
		Pending: map[models.CommandAction]bool{
			models.ActionPause: true,
			models.ActionRetry: true,
		},
	})

	assert.True(t, v.PausePending)
	assert.True(t, v.RetryPending)
	assert.False(t, v.ResumePending)
	assert.False(t, v.CancelPending)
}

func TestBuildCopiesActivity(t *testing.T) {
	entries := []models.ActivityEntry{
		{ID: "a", Kind: models.ActivityKindInfo, Message: "Saved 5 documents"},
	}

	v := Build(Input{Current: runningSnapshot(), Activity: entries})

	entries[0].Message = "mutated"
	assert.Equal(t, "Saved 5 documents", v.Activity[0].Message)
}
