// -----------------------------------------------------------------------
// Push Subscriber - WebSocket status stream feeding the reconciler
// -----------------------------------------------------------------------

package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/models"
	"github.com/ternarybob/specto/internal/services/reconciler"
	"golang.org/x/time/rate"
)

// Service consumes the backend's WebSocket status stream as a second,
// unordered snapshot source. Frames go through the same reconciler entry
// point as poll results, so the ordering gate - not this subscriber -
// decides what wins.
//
// Large crawls can push progress frames far faster than a feed is worth
// redrawing, so pure progress updates are throttled; frames that change
// status always pass.
type Service struct {
	url            string
	rec            *reconciler.Service
	logger         arbor.ILogger
	progressLimit  *rate.Limiter
	reconnectDelay time.Duration

	mu      sync.Mutex
	ownerID string
	cancel  context.CancelFunc
	conn    *websocket.Conn
}

// NewService creates a new push subscriber.
func NewService(config *common.Config, rec *reconciler.Service, logger arbor.ILogger) *Service {
	return &Service{
		url:            config.Push.URL,
		rec:            rec,
		logger:         logger,
		progressLimit:  rate.NewLimiter(rate.Every(config.PushThrottle()), 1),
		reconnectDelay: config.PushReconnectDelay(),
	}
}

// Start begins streaming status frames for the given owner. Any previous
// stream is torn down first.
func (s *Service) Start(ownerID string) {
	s.Stop()

	s.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	s.ownerID = ownerID
	s.cancel = cancel
	s.mu.Unlock()

	common.SafeGo(s.logger, "push.stream", func() {
		s.streamLoop(ctx, ownerID)
	})
}

// Stop tears the stream down: the connection is closed and the read loop
// exits. No frame received after Stop reaches the reconciler.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.ownerID = ""
	s.mu.Unlock()
}

func (s *Service) streamLoop(ctx context.Context, ownerID string) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.streamOnce(ctx, ownerID); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("Push stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Service) streamOnce(ctx context.Context, ownerID string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		conn.Close()
	}()

	s.logger.Debug().Str("owner_id", ownerID).Msg("Push stream connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame models.JobActivityResponse
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn().Err(err).Msg("Discarding malformed push frame")
			continue
		}

		s.applyFrame(ctx, ownerID, &frame)
	}
}

func (s *Service) applyFrame(ctx context.Context, ownerID string, frame *models.JobActivityResponse) {
	// A frame already read off the socket when Stop ran must not reach
	// the reconciler.
	if ctx.Err() != nil {
		return
	}

	snap := frame.Job
	if snap == nil && frame.LastRun != nil {
		snap = frame.LastRun.Job
	}
	if snap == nil {
		return
	}

	if s.isProgressOnly(snap) && !s.progressLimit.Allow() {
		return
	}

	s.rec.Apply(ctx, ownerID, snap)
}

// isProgressOnly reports whether the frame only advances counters for the
// job already tracked. Status transitions and new jobs are never dropped.
func (s *Service) isProgressOnly(snap *models.JobSnapshot) bool {
	current := s.rec.Current()
	return current != nil &&
		current.JobID == snap.JobID &&
		current.Status == snap.Status
}
