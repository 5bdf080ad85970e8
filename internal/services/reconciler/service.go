// -----------------------------------------------------------------------
// Reconciler - single authority for the currently tracked job state
// -----------------------------------------------------------------------

package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/ternarybob/specto/internal/models"
	"github.com/ternarybob/specto/internal/services/activity"
	"github.com/ternarybob/specto/internal/services/suppressor"
)

// Service reconciles candidate snapshots from any source (poller, command
// responses, push frames) into the authoritative current-job and last-run
// slots. It is safe to call from any goroutine; ordering is enforced by
// the producer timestamp, not by the callers.
//
// The service never fails: snapshots are either applied or classified and
// discarded. Transport errors belong to the poller and command dispatcher.
type Service struct {
	mu sync.Mutex

	ownerID string
	current *models.JobSnapshot
	lastRun *models.JobSnapshot
	entries []models.ActivityEntry // newest first, capped

	activityLimit int
	hideDelay     time.Duration

	hideTimer      *time.Timer
	hideGen        uint64 // invalidates pending hide timers on teardown/retarget
	hidePendingJob string

	suppressor   *suppressor.Service
	eventService interfaces.EventService
	logger       arbor.ILogger

	// Injected for tests; default to the real clock.
	nowFn   func() time.Time
	afterFn func(d time.Duration, fn func()) *time.Timer
}

// NewService creates a new reconciler.
func NewService(eventService interfaces.EventService, sup *suppressor.Service, logger arbor.ILogger, hideDelay time.Duration, activityLimit int) *Service {
	if hideDelay <= 0 {
		hideDelay = 2 * time.Second
	}
	if activityLimit <= 0 {
		activityLimit = models.ActivityLimit
	}
	return &Service{
		activityLimit: activityLimit,
		hideDelay:     hideDelay,
		suppressor:    sup,
		eventService:  eventService,
		logger:        logger,
		nowFn:         time.Now,
		afterFn:       time.AfterFunc,
	}
}

// Retarget clears all held state and points the reconciler at a new owner.
// Pending hide timers are cancelled so no stale callback can fire into the
// new target's state. An empty ownerID tears the reconciler down.
func (s *Service) Retarget(ownerID string) {
	s.mu.Lock()
	s.ownerID = ownerID
	s.current = nil
	s.lastRun = nil
	s.entries = nil
	s.cancelHideTimerLocked()
	s.mu.Unlock()

	s.logger.Debug().Str("owner_id", ownerID).Msg("Reconciler retargeted")
}

// Apply reconciles a snapshot witnessed live (poll response, command
// response, push frame) for the given owner.
func (s *Service) Apply(ctx context.Context, ownerID string, snap *models.JobSnapshot) {
	s.apply(ctx, ownerID, snap, true)
}

// ApplyInitial reconciles a caller-supplied known prior state, e.g. a job
// that was already running when the application loaded. It follows the
// same branching as Apply but never starts the cancellation-hide timer:
// the timer is a confirmation for cancellations witnessed live, and a job
// found canceled on load is either already suppressed or not worth
// surfacing at all.
func (s *Service) ApplyInitial(ctx context.Context, ownerID string, snap *models.JobSnapshot) {
	s.apply(ctx, ownerID, snap, false)
}

func (s *Service) apply(ctx context.Context, ownerID string, snap *models.JobSnapshot, live bool) {
	if snap == nil {
		return
	}

	s.mu.Lock()

	// An empty tracked owner means torn down; nothing is accepted until
	// the next Retarget, so a snapshot still in flight at teardown cannot
	// resurrect state.
	if s.ownerID == "" || ownerID != s.ownerID {
		s.mu.Unlock()
		s.logger.Debug().
			Str("owner_id", ownerID).
			Str("tracked_owner_id", s.ownerID).
			Msg("Discarding snapshot for untracked owner")
		return
	}

	if !s.acceptableLocked(snap) {
		s.mu.Unlock()
		return
	}

	var notifications []pendingEvent

	if snap.Status.IsActive() {
		notifications = s.applyActiveLocked(snap)
	} else {
		notifications = s.applyTerminalLocked(snap, live)
	}

	s.mu.Unlock()

	for _, n := range notifications {
		s.publish(ctx, n)
	}
}

// acceptableLocked implements out-of-order protection and duplicate
// suppression against whichever slot currently holds this job.
func (s *Service) acceptableLocked(snap *models.JobSnapshot) bool {
	held := s.current
	if held == nil || held.JobID != snap.JobID {
		if s.lastRun != nil && s.lastRun.JobID == snap.JobID {
			held = s.lastRun
		} else {
			return true
		}
	}

	if snap.UpdatedAt.Before(held.UpdatedAt) {
		s.logger.Debug().
			Str("job_id", snap.JobID).
			Str("incoming", snap.UpdatedAt.Format(time.RFC3339Nano)).
			Str("held", held.UpdatedAt.Format(time.RFC3339Nano)).
			Msg("Discarding out-of-order snapshot")
		return false
	}

	// Equal timestamps may still carry status or text changes, but a
	// byte-identical payload is a duplicate and would only cause a
	// redundant redraw.
	if snap.UpdatedAt.Equal(held.UpdatedAt) && snap.Equal(held) {
		s.logger.Debug().Str("job_id", snap.JobID).Msg("Discarding duplicate snapshot")
		return false
	}

	return true
}

func (s *Service) applyActiveLocked(snap *models.JobSnapshot) []pendingEvent {
	var notifications []pendingEvent
	now := s.nowFn()

	prev := s.current
	if prev != nil && prev.JobID != snap.JobID {
		// Different job: never diff counters across jobs, start a fresh log.
		prev = nil
	}

	fresh := activity.Synthesize(prev, snap, now)
	if prev == nil {
		s.entries = nil
	}
	s.prependEntriesLocked(fresh)

	if prev != nil {
		if delta := snap.Saved - prev.Saved; delta > 0 {
			notifications = append(notifications, pendingEvent{
				eventType: interfaces.EventDocumentsSaved,
				payload:   models.SavedDelta{Delta: delta, Job: snap.Clone()},
			})
		}
	}

	s.current = snap.Clone()

	notifications = append(notifications, pendingEvent{
		eventType: interfaces.EventJobState,
		payload: models.StateChange{
			Running: true,
			Job:     snap.Clone(),
			LastRun: s.lastRun.Clone(),
		},
	})

	return notifications
}

func (s *Service) applyTerminalLocked(snap *models.JobSnapshot, live bool) []pendingEvent {
	// The live cancellation transition is the one where the user (or the
	// backend) cancels a job this reconciler was actually watching. A
	// canceled snapshot arriving for a job that was already canceled, or
	// that was never held as current, is a replay.
	liveCancel := live &&
		snap.Status == models.JobStatusCanceled &&
		s.current != nil &&
		s.current.JobID == snap.JobID &&
		s.current.Status != models.JobStatusCanceled

	s.current = nil
	s.entries = nil
	s.lastRun = snap.Clone()

	ctx := context.Background()

	if snap.Status == models.JobStatusCanceled {
		switch {
		case liveCancel:
			s.suppressor.MarkHidden(ctx, snap.JobID)
			s.scheduleHideLocked(snap.JobID)
		case s.hideTimer != nil && s.hidePendingJob == snap.JobID:
			// Replay of a cancellation whose confirmation window is still
			// open: keep it visible until the timer clears it.
		default:
			// Found canceled rather than watched canceling: either the
			// user already dismissed it this session, or the page never
			// saw it live. Neither is worth a banner.
			if s.suppressor.IsHidden(ctx, snap.JobID) {
				s.logger.Debug().Str("job_id", snap.JobID).Msg("Suppressing dismissed cancellation")
			}
			s.lastRun = nil
		}
	}

	return []pendingEvent{{
		eventType: interfaces.EventJobState,
		payload: models.StateChange{
			Running: false,
			Job:     nil,
			LastRun: s.lastRun.Clone(),
		},
	}}
}

// scheduleHideLocked arms the cancellation confirmation window: the
// terminal snapshot stays visible briefly, then the last-run slot clears.
func (s *Service) scheduleHideLocked(jobID string) {
	s.cancelHideTimerLocked()

	s.hideGen++
	gen := s.hideGen
	s.hidePendingJob = jobID

	s.hideTimer = s.afterFn(s.hideDelay, func() {
		s.hideFired(gen, jobID)
	})
}

func (s *Service) hideFired(gen uint64, jobID string) {
	s.mu.Lock()
	if gen != s.hideGen || s.lastRun == nil || s.lastRun.JobID != jobID {
		s.mu.Unlock()
		return
	}
	s.lastRun = nil
	s.hideTimer = nil
	s.hidePendingJob = ""
	change := models.StateChange{
		Running: s.current != nil,
		Job:     s.current.Clone(),
		LastRun: nil,
	}
	s.mu.Unlock()

	s.publish(context.Background(), pendingEvent{
		eventType: interfaces.EventJobState,
		payload:   change,
	})
}

func (s *Service) cancelHideTimerLocked() {
	s.hideGen++
	s.hidePendingJob = ""
	if s.hideTimer != nil {
		s.hideTimer.Stop()
		s.hideTimer = nil
	}
}

func (s *Service) prependEntriesLocked(fresh []models.ActivityEntry) {
	if len(fresh) == 0 {
		return
	}
	merged := make([]models.ActivityEntry, 0, len(fresh)+len(s.entries))
	merged = append(merged, fresh...)
	merged = append(merged, s.entries...)
	if len(merged) > s.activityLimit {
		merged = merged[:s.activityLimit]
	}
	s.entries = merged
}

// OwnerID returns the owner currently tracked.
func (s *Service) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// Current returns a copy of the active job snapshot, or nil.
func (s *Service) Current() *models.JobSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// LastRun returns a copy of the last completed job snapshot, or nil.
func (s *Service) LastRun() *models.JobSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun.Clone()
}

// Entries returns a copy of the activity log, newest first.
func (s *Service) Entries() []models.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ActivityEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

type pendingEvent struct {
	eventType interfaces.EventType
	payload   interface{}
}

// publish delivers an event synchronously so observers see transitions in
// application order. The reconciler lock is never held here: a handler is
// allowed to call back into Apply.
func (s *Service) publish(ctx context.Context, n pendingEvent) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.PublishSync(ctx, interfaces.Event{Type: n.eventType, Payload: n.payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(n.eventType)).Msg("Observer notification failed")
	}
}
