// -----------------------------------------------------------------------
// Poller - fixed-interval job-activity polling with one in-flight request
// -----------------------------------------------------------------------

package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/ternarybob/specto/internal/models"
	"github.com/ternarybob/specto/internal/services/reconciler"
)

// Service polls the job-activity endpoint for one owner at a time and
// feeds every classified response into the reconciler. At most one request
// is in flight; rescheduling happens after every response, success or
// failure, so a single failed request can never stop polling.
//
// A generation counter guards all callbacks: retargeting or stopping bumps
// the generation and synchronously cancels the in-flight request, so no
// stale poll can mutate state after teardown.
type Service struct {
	client       interfaces.JobClient
	rec          *reconciler.Service
	eventService interfaces.EventService
	logger       arbor.ILogger
	interval     time.Duration

	mu      sync.Mutex
	ownerID string
	gen     uint64
	cancel  context.CancelFunc
	timer   *time.Timer

	afterFn func(d time.Duration, fn func()) *time.Timer
}

// NewService creates a new poller. The interval is floored so a
// misconfigured caller cannot hammer the backend.
func NewService(client interfaces.JobClient, rec *reconciler.Service, eventService interfaces.EventService, logger arbor.ILogger, interval time.Duration) *Service {
	if interval <= 0 {
		interval = common.DefaultPollInterval
	}
	if interval < common.MinPollInterval {
		interval = common.MinPollInterval
	}
	return &Service{
		client:       client,
		rec:          rec,
		eventService: eventService,
		logger:       logger,
		interval:     interval,
		afterFn:      time.AfterFunc,
	}
}

// Interval returns the effective poll interval after flooring.
func (s *Service) Interval() time.Duration {
	return s.interval
}

// Watch retargets the poller at a new owner. Any in-flight request is
// cancelled and any pending timer cleared before the first immediate poll
// of the new target is issued. Watching the empty owner tears down.
func (s *Service) Watch(ownerID string) {
	s.mu.Lock()
	s.teardownLocked()
	s.ownerID = ownerID
	gen := s.gen
	s.mu.Unlock()

	s.rec.Retarget(ownerID)

	if ownerID == "" {
		return
	}

	s.logger.Debug().Str("owner_id", ownerID).Msg("Poller watching owner")
	common.SafeGo(s.logger, "poller.poll", func() {
		s.pollOnce(gen)
	})
}

// Stop tears the poller down: the in-flight request is cancelled
// synchronously and no further callbacks run.
func (s *Service) Stop() {
	s.mu.Lock()
	s.teardownLocked()
	s.ownerID = ""
	s.mu.Unlock()

	s.logger.Debug().Msg("Poller stopped")
}

// teardownLocked bumps the generation, cancels the in-flight request and
// clears the pending timer. Callers hold s.mu.
func (s *Service) teardownLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Service) pollOnce(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	ownerID := s.ownerID
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	// Rescheduling lives in a defer so every path - success, empty
	// payload, transport error - arms the next poll. The cancel func is
	// released here too; teardownLocked may already have called it.
	defer s.reschedule(gen)
	defer cancel()

	resp, err := s.client.GetJobActivity(ctx, ownerID)

	s.mu.Lock()
	if gen != s.gen {
		// Retargeted or stopped while the request was in flight; the
		// response belongs to a dead generation.
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	s.mu.Unlock()

	if err == nil && resp.Running && resp.Job == nil {
		err = interfaces.ErrMissingJobPayload
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("Job activity poll failed")
		s.publishConnectionError(err.Error())
		return
	}

	s.publishConnectionError("")

	if resp.Running {
		s.rec.Apply(context.Background(), ownerID, resp.Job)
		return
	}

	if terminal := s.terminalSnapshot(resp); terminal != nil {
		s.rec.Apply(context.Background(), ownerID, terminal)
	}
}

// terminalSnapshot derives the snapshot to reconcile when the backend
// reports nothing running: the embedded last run when present, otherwise a
// terminal-equivalent of the snapshot we were holding. Returns nil when
// there is nothing to feed (fresh owner, nothing ever ran).
func (s *Service) terminalSnapshot(resp *models.JobActivityResponse) *models.JobSnapshot {
	if resp.LastRun != nil && resp.LastRun.Job != nil {
		return resp.LastRun.Job
	}

	prev := s.rec.Current()
	if prev == nil {
		return nil
	}

	terminal := prev.Clone()
	if !terminal.Status.IsTerminal() {
		terminal.Status = models.JobStatusDone
	}
	return terminal
}

func (s *Service) reschedule(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.ownerID == "" {
		return
	}

	s.timer = s.afterFn(s.interval, func() {
		s.pollOnce(gen)
	})
}

func (s *Service) publishConnectionError(message string) {
	if s.eventService == nil {
		return
	}
	event := interfaces.Event{Type: interfaces.EventConnectionError, Payload: message}
	if err := s.eventService.PublishSync(context.Background(), event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish connection error")
	}
}
