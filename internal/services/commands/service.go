// -----------------------------------------------------------------------
// Command Dispatcher - pause/resume/cancel/retry for the tracked job
// -----------------------------------------------------------------------

package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/ternarybob/specto/internal/models"
	"github.com/ternarybob/specto/internal/services/reconciler"
)

// Service issues control commands for the currently tracked job and feeds
// each response snapshot back through the reconciler, exactly like a poll
// result. Command failures are surfaced as an action-scoped error distinct
// from the poller's connection error and are never auto-retried.
type Service struct {
	client       interfaces.JobClient
	rec          *reconciler.Service
	eventService interfaces.EventService
	logger       arbor.ILogger

	mu      sync.Mutex
	pending map[models.CommandAction]bool
	cancel  context.CancelFunc // in-flight command, at most one
	cmdGen  uint64             // identifies which command owns s.cancel
}

// NewService creates a new command dispatcher.
func NewService(client interfaces.JobClient, rec *reconciler.Service, eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		client:       client,
		rec:          rec,
		eventService: eventService,
		logger:       logger,
		pending:      make(map[models.CommandAction]bool),
	}
}

// Pause pauses the tracked job.
func (s *Service) Pause(ctx context.Context) error {
	return s.Execute(ctx, models.ActionPause)
}

// Resume resumes the tracked job.
func (s *Service) Resume(ctx context.Context) error {
	return s.Execute(ctx, models.ActionResume)
}

// Cancel cancels the tracked job.
func (s *Service) Cancel(ctx context.Context) error {
	return s.Execute(ctx, models.ActionCancel)
}

// Retry retries the tracked job, or the last completed job when nothing is
// active - retry is the one action that is meaningful after termination.
func (s *Service) Retry(ctx context.Context) error {
	return s.Execute(ctx, models.ActionRetry)
}

// Execute issues a control action for the tracked job. Without a tracked
// job every action is a no-op returning ErrNoTrackedJob (retry falls back
// to the last completed job first).
func (s *Service) Execute(ctx context.Context, action models.CommandAction) error {
	if !action.Valid() {
		return fmt.Errorf("unknown command action: %s", action)
	}

	jobID, err := s.targetJobID(action)
	if err != nil {
		return err
	}

	cmdCtx, cancel, gen := s.begin(ctx, action)
	defer s.finish(action, cancel, gen)

	s.logger.Debug().
		Str("job_id", jobID).
		Str("action", string(action)).
		Msg("Dispatching job command")

	snap, err := s.client.SendCommand(cmdCtx, jobID, action)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("job_id", jobID).
			Str("action", string(action)).
			Msg("Job command failed")
		s.publishCommandError(fmt.Sprintf("%s failed: %s", action, err.Error()))
		return err
	}

	s.publishCommandError("")
	s.rec.Apply(ctx, s.rec.OwnerID(), snap)
	return nil
}

// Pending reports whether a command of the given action is in flight.
func (s *Service) Pending(action models.CommandAction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[action]
}

// PendingActions returns a copy of the per-action pending flags.
func (s *Service) PendingActions() map[models.CommandAction]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.CommandAction]bool, len(s.pending))
	for action, pending := range s.pending {
		out[action] = pending
	}
	return out
}

// targetJobID resolves which job the action applies to. Pause, resume and
// cancel require an active job; retry may target the last completed run.
func (s *Service) targetJobID(action models.CommandAction) (string, error) {
	if current := s.rec.Current(); current != nil {
		return current.JobID, nil
	}
	if action == models.ActionRetry {
		if last := s.rec.LastRun(); last != nil {
			return last.JobID, nil
		}
	}
	return "", interfaces.ErrNoTrackedJob
}

// begin marks the action pending and cancels any prior in-flight command
// so at most one command request exists alongside the poll.
func (s *Service) begin(ctx context.Context, action models.CommandAction) (context.Context, context.CancelFunc, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	cmdCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.cmdGen++
	s.pending[action] = true
	return cmdCtx, cancel, s.cmdGen
}

// finish releases the command's context registration. The stored cancel
// is cleared only when it still belongs to this command; a successor that
// began in the meantime owns it now.
func (s *Service) finish(action models.CommandAction, cancel context.CancelFunc, gen uint64) {
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[action] = false
	if gen == s.cmdGen {
		s.cancel = nil
	}
}

func (s *Service) publishCommandError(message string) {
	if s.eventService == nil {
		return
	}
	event := interfaces.Event{Type: interfaces.EventCommandError, Payload: message}
	if err := s.eventService.PublishSync(context.Background(), event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish command error")
	}
}
