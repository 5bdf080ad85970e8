// -----------------------------------------------------------------------
// specto-sim - simulated crawl backend for local tracker development
// -----------------------------------------------------------------------

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/models"
)

var (
	port     = flag.Int("port", 8085, "Port to listen on")
	tickRate = flag.Duration("tick", time.Second, "Simulation tick interval")
	pages    = flag.Int("pages", 120, "Pages the simulated crawl discovers")
)

func main() {
	flag.Parse()

	logger := common.GetLogger()
	common.PrintBanner(common.GetVersion())

	sim := newSimulator(*pages, *tickRate)
	sim.start()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/owners/", sim.handleJobActivity)
	mux.HandleFunc("/api/jobs/", sim.handleCommand)
	mux.HandleFunc("/ws/status", sim.handleStatusStream)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	common.SafeGo(logger, "sim.serve", func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Simulator server failed")
		}
	})

	logger.Info().Int("port", *port).Msg("Crawl simulator listening")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	sim.stop()
	server.Close()
}

// simulator drives one fake crawl job through its lifecycle. Every tick
// it fetches a few pages, saves most of them and occasionally fails one,
// so the tracker has realistic counter deltas to report.
type simulator struct {
	mu     sync.Mutex
	job    *models.JobSnapshot
	pages  int
	ticker *time.Ticker
	done   chan struct{}

	upgrader websocket.Upgrader
	streams  map[*websocket.Conn]bool
}

func newSimulator(pages int, tick time.Duration) *simulator {
	s := &simulator{
		pages:   pages,
		ticker:  time.NewTicker(tick),
		done:    make(chan struct{}),
		streams: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.job = s.freshJob()
	return s
}

func (s *simulator) freshJob() *models.JobSnapshot {
	return &models.JobSnapshot{
		JobID:      common.NewJobID(),
		OwnerID:    "kb-sim",
		Status:     models.JobStatusRunning,
		Discovered: s.pages,
		UpdatedAt:  time.Now(),
	}
}

func (s *simulator) start() {
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *simulator) stop() {
	s.ticker.Stop()
	close(s.done)
}

func (s *simulator) tick() {
	s.mu.Lock()

	if s.job.Status != models.JobStatusRunning {
		s.mu.Unlock()
		return
	}

	s.job.Fetched += 3
	s.job.Saved += 2
	if s.job.Fetched%30 == 0 {
		s.job.FailedItems++
	}
	s.job.LastURL = fmt.Sprintf("https://example.com/docs/page-%d", s.job.Fetched)
	s.job.Percent = float64(s.job.Fetched) * 100 / float64(s.job.Discovered)
	s.job.ETASeconds = (s.job.Discovered - s.job.Fetched) / 3
	s.job.UpdatedAt = time.Now()

	if s.job.Fetched >= s.job.Discovered {
		s.job.Status = models.JobStatusDone
		s.job.Percent = 100
		s.job.ETASeconds = 0
	}

	frame := s.activityLocked()
	s.mu.Unlock()

	s.broadcast(frame)
}

// activityLocked builds the response the real backend would serve.
// Callers hold s.mu.
func (s *simulator) activityLocked() *models.JobActivityResponse {
	if s.job.Status.IsActive() {
		return &models.JobActivityResponse{Running: true, Job: s.job.Clone()}
	}
	return &models.JobActivityResponse{
		Running: false,
		LastRun: &models.LastRun{Job: s.job.Clone()},
	}
}

func (s *simulator) handleJobActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/job-activity") {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	resp := s.activityLocked()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *simulator) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/commands") {
		http.NotFound(w, r)
		return
	}

	var req models.JobCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed command request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	switch req.Action {
	case models.ActionPause:
		if s.job.Status != models.JobStatusRunning {
			s.mu.Unlock()
			http.Error(w, "job is not running", http.StatusConflict)
			return
		}
		s.job.Status = models.JobStatusPaused
	case models.ActionResume:
		if s.job.Status != models.JobStatusPaused {
			s.mu.Unlock()
			http.Error(w, "job is not paused", http.StatusConflict)
			return
		}
		s.job.Status = models.JobStatusRunning
	case models.ActionCancel:
		if !s.job.Status.IsActive() {
			s.mu.Unlock()
			http.Error(w, "job already finished", http.StatusConflict)
			return
		}
		s.job.Status = models.JobStatusCanceled
	case models.ActionRetry:
		s.job = s.freshJob()
	default:
		s.mu.Unlock()
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	s.job.UpdatedAt = time.Now()
	snap := s.job.Clone()
	frame := s.activityLocked()
	s.mu.Unlock()

	s.broadcast(frame)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.JobCommandResponse{Job: snap})
}

// handleStatusStream upgrades to WebSocket and pushes every simulation
// frame, the same shape the poll endpoint serves.
func (s *simulator) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.streams[conn] = true
	frame := s.activityLocked()
	s.mu.Unlock()

	conn.WriteJSON(frame)
}

func (s *simulator) broadcast(frame *models.JobActivityResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.streams {
		if err := conn.WriteJSON(frame); err != nil {
			conn.Close()
			delete(s.streams, conn)
		}
	}
}
