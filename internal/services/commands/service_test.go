package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/ternarybob/specto/internal/models"
	"github.com/ternarybob/specto/internal/services/events"
	"github.com/ternarybob/specto/internal/services/reconciler"
	"github.com/ternarybob/specto/internal/services/suppressor"
	"github.com/ternarybob/specto/internal/storage/memory"
)

type mockClient struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error)
	calls  []string
}

func (m *mockClient) GetJobActivity(ctx context.Context, ownerID string) (*models.JobActivityResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) SendCommand(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
	m.mu.Lock()
	m.calls = append(m.calls, jobID+":"+string(action))
	m.mu.Unlock()
	return m.sendFn(ctx, jobID, action)
}

func (m *mockClient) sentCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

type fixture struct {
	commands  *Service
	rec       *reconciler.Service
	client    *mockClient
	actionErr []string
	mu        sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := common.GetLogger()

	bus := events.NewService(logger)
	sup := suppressor.NewService(memory.NewSessionStore(), logger)
	rec := reconciler.NewService(bus, sup, logger, 2*time.Second, 5)

	f := &fixture{
		rec:    rec,
		client: &mockClient{},
	}
	require.NoError(t, bus.Subscribe(interfaces.EventCommandError, func(ctx context.Context, e interfaces.Event) error {
		f.mu.Lock()
		f.actionErr = append(f.actionErr, e.Payload.(string))
		f.mu.Unlock()
		return nil
	}))

	f.commands = NewService(f.client, rec, bus, logger)
	return f
}

func (f *fixture) commandErrors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.actionErr))
	copy(out, f.actionErr)
	return out
}

func (f *fixture) trackRunning(t *testing.T, jobID string, at time.Time) {
	t.Helper()
	f.rec.Retarget("kb-1")
	f.rec.Apply(context.Background(), "kb-1", &models.JobSnapshot{
		JobID:     jobID,
		OwnerID:   "kb-1",
		Status:    models.JobStatusRunning,
		UpdatedAt: at,
	})
	require.NotNil(t, f.rec.Current())
}

func TestExecuteWithoutTrackedJobIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.rec.Retarget("kb-1")

	for _, action := range []models.CommandAction{models.ActionPause, models.ActionResume, models.ActionCancel, models.ActionRetry} {
		err := f.commands.Execute(context.Background(), action)
		assert.ErrorIs(t, err, interfaces.ErrNoTrackedJob, "action %s", action)
	}
	assert.Empty(t, f.client.sentCommands(), "no request may leave the dispatcher without a target job")
}

func TestExecuteRejectsUnknownAction(t *testing.T) {
	f := newFixture(t)

	err := f.commands.Execute(context.Background(), models.CommandAction("restart"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command action")
}

func TestSuccessfulCommandFeedsResponseThroughReconciler(t *testing.T) {
	f := newFixture(t)
	at := time.Now()
	f.trackRunning(t, "job-a", at)

	f.client.sendFn = func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
		return &models.JobSnapshot{
			JobID:     jobID,
			OwnerID:   "kb-1",
			Status:    models.JobStatusPaused,
			UpdatedAt: at.Add(time.Second),
		}, nil
	}

	require.NoError(t, f.commands.Pause(context.Background()))

	assert.Equal(t, []string{"job-a:pause"}, f.client.sentCommands())
	current := f.rec.Current()
	require.NotNil(t, current)
	assert.Equal(t, models.JobStatusPaused, current.Status)

	// Success clears the action error banner.
	assert.Equal(t, []string{""}, f.commandErrors())
}

func TestFailedCommandPublishesActionError(t *testing.T) {
	f := newFixture(t)
	at := time.Now()
	f.trackRunning(t, "job-a", at)

	f.client.sendFn = func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
		return nil, errors.New("job is not pausable")
	}

	err := f.commands.Pause(context.Background())
	require.Error(t, err)

	errs := f.commandErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "pause failed")
	assert.Contains(t, errs[0], "job is not pausable")

	// The held snapshot is untouched by a failed command.
	current := f.rec.Current()
	require.NotNil(t, current)
	assert.Equal(t, models.JobStatusRunning, current.Status)
}

func TestStaleCommandResponseDiscarded(t *testing.T) {
	f := newFixture(t)
	at := time.Now()
	f.trackRunning(t, "job-a", at)

	// The backend answers with a snapshot older than what a poll already
	// delivered. The reconciler must discard it.
	f.client.sendFn = func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
		return &models.JobSnapshot{
			JobID:     jobID,
			OwnerID:   "kb-1",
			Status:    models.JobStatusPaused,
			UpdatedAt: at.Add(-time.Second),
		}, nil
	}

	require.NoError(t, f.commands.Pause(context.Background()))

	current := f.rec.Current()
	require.NotNil(t, current)
	assert.Equal(t, models.JobStatusRunning, current.Status, "stale command response must not regress state")
}

func TestRetryTargetsLastRunWhenNothingActive(t *testing.T) {
	f := newFixture(t)
	at := time.Now()
	f.rec.Retarget("kb-1")
	f.rec.Apply(context.Background(), "kb-1", &models.JobSnapshot{
		JobID:     "job-old",
		OwnerID:   "kb-1",
		Status:    models.JobStatusFailed,
		UpdatedAt: at,
	})
	require.Nil(t, f.rec.Current())
	require.NotNil(t, f.rec.LastRun())

	f.client.sendFn = func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
		return &models.JobSnapshot{
			JobID:     "job-new",
			OwnerID:   "kb-1",
			Status:    models.JobStatusRunning,
			UpdatedAt: at.Add(time.Second),
		}, nil
	}

	require.NoError(t, f.commands.Retry(context.Background()))

	assert.Equal(t, []string{"job-old:retry"}, f.client.sentCommands())
	current := f.rec.Current()
	require.NotNil(t, current)
	assert.Equal(t, "job-new", current.JobID, "retry response adopts the replacement job")
}

func TestCommandContextReleasedAfterCompletion(t *testing.T) {
	f := newFixture(t)
	at := time.Now()
	f.trackRunning(t, "job-a", at)

	var cmdCtx context.Context
	f.client.sendFn = func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
		cmdCtx = ctx
		return &models.JobSnapshot{
			JobID:     jobID,
			OwnerID:   "kb-1",
			Status:    models.JobStatusPaused,
			UpdatedAt: at.Add(time.Second),
		}, nil
	}

	require.NoError(t, f.commands.Pause(context.Background()))

	require.NotNil(t, cmdCtx)
	assert.ErrorIs(t, cmdCtx.Err(), context.Canceled, "the derived context must be released once the command completes")
}

func TestPendingFlagsTrackInFlightCommand(t *testing.T) {
	f := newFixture(t)
	at := time.Now()
	f.trackRunning(t, "job-a", at)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.client.sendFn = func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
		close(entered)
		<-release
		return &models.JobSnapshot{
			JobID:     jobID,
			OwnerID:   "kb-1",
			Status:    models.JobStatusPaused,
			UpdatedAt: at.Add(time.Second),
		}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.commands.Pause(context.Background()) }()

	<-entered
	assert.True(t, f.commands.Pending(models.ActionPause))
	assert.False(t, f.commands.Pending(models.ActionCancel))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.commands.Pending(models.ActionPause))
}

func TestNewCommandCancelsPriorInFlight(t *testing.T) {
	f := newFixture(t)
	at := time.Now()
	f.trackRunning(t, "job-a", at)

	firstEntered := make(chan struct{})
	var mu sync.Mutex
	var firstCanceled bool
	f.client.sendFn = func(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
		if action == models.ActionPause {
			close(firstEntered)
			<-ctx.Done()
			mu.Lock()
			firstCanceled = true
			mu.Unlock()
			return nil, ctx.Err()
		}
		return &models.JobSnapshot{
			JobID:     jobID,
			OwnerID:   "kb-1",
			Status:    models.JobStatusCanceled,
			UpdatedAt: at.Add(time.Second),
		}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.commands.Pause(context.Background()) }()
	<-firstEntered

	require.NoError(t, f.commands.Cancel(context.Background()))
	require.Error(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, firstCanceled, "issuing a command must cancel the previous in-flight command")
}
