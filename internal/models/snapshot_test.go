package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshot() *JobSnapshot {
	return &JobSnapshot{
		JobID:     "job-1",
		OwnerID:   "kb-1",
		Status:    JobStatusRunning,
		Fetched:   10,
		Saved:     8,
		UpdatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestJobStatusClassification(t *testing.T) {
	assert.True(t, JobStatusRunning.IsActive())
	assert.True(t, JobStatusPaused.IsActive())
	assert.False(t, JobStatusCanceled.IsActive())

	assert.True(t, JobStatusCanceled.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusDone.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.False(t, JobStatusPaused.IsTerminal())
}

func TestSnapshotValidate(t *testing.T) {
	require.NoError(t, validSnapshot().Validate())

	missingID := validSnapshot()
	missingID.JobID = ""
	assert.Error(t, missingID.Validate())

	badStatus := validSnapshot()
	badStatus.Status = JobStatus("exploded")
	assert.Error(t, badStatus.Validate())

	negativeCounter := validSnapshot()
	negativeCounter.Saved = -1
	assert.Error(t, negativeCounter.Validate())
}

func TestExtractedCountFallsBackToFetched(t *testing.T) {
	s := validSnapshot()
	assert.Equal(t, 10, s.ExtractedCount())

	three := 3
	s.Extracted = &three
	assert.Equal(t, 3, s.ExtractedCount())
}

func TestSnapshotEqual(t *testing.T) {
	a := validSnapshot()
	b := validSnapshot()
	assert.True(t, a.Equal(b))

	b.Saved++
	assert.False(t, a.Equal(b))

	// Identical timestamps with different optional counters differ.
	c := validSnapshot()
	five := 5
	c.Extracted = &five
	assert.False(t, a.Equal(c))

	d := validSnapshot()
	alsoFive := 5
	d.Extracted = &alsoFive
	assert.True(t, c.Equal(d))

	assert.False(t, a.Equal(nil))
	var nilSnap *JobSnapshot
	assert.True(t, nilSnap.Equal(nil))
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	five := 5
	original := validSnapshot()
	original.Extracted = &five

	clone := original.Clone()
	require.NotSame(t, original, clone)
	assert.True(t, original.Equal(clone))

	*clone.Extracted = 9
	assert.Equal(t, 5, *original.Extracted, "clone must not share the optional counter")

	var nilSnap *JobSnapshot
	assert.Nil(t, nilSnap.Clone())
}

func TestCountersNonDecreasingFrom(t *testing.T) {
	prev := validSnapshot()
	next := validSnapshot()
	next.Fetched = 12
	next.Saved = 9

	assert.True(t, next.CountersNonDecreasingFrom(prev))
	assert.False(t, prev.CountersNonDecreasingFrom(next))
	assert.True(t, next.CountersNonDecreasingFrom(nil))
}

func TestCommandActionValid(t *testing.T) {
	for _, action := range []CommandAction{ActionPause, ActionResume, ActionCancel, ActionRetry} {
		assert.True(t, action.Valid(), "action %s", action)
	}
	assert.False(t, CommandAction("restart").Valid())
	assert.False(t, CommandAction("").Valid())
}
