// -----------------------------------------------------------------------
// App - wires the tracker's services together
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/ternarybob/specto/internal/models"
	"github.com/ternarybob/specto/internal/services/client"
	"github.com/ternarybob/specto/internal/services/commands"
	"github.com/ternarybob/specto/internal/services/events"
	"github.com/ternarybob/specto/internal/services/poller"
	"github.com/ternarybob/specto/internal/services/push"
	"github.com/ternarybob/specto/internal/services/reconciler"
	"github.com/ternarybob/specto/internal/services/suppressor"
	"github.com/ternarybob/specto/internal/services/view"
	badgerstore "github.com/ternarybob/specto/internal/storage/badger"
	"github.com/ternarybob/specto/internal/storage/memory"
)

// App holds all tracker components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	EventService interfaces.EventService
	Suppressor   *suppressor.Service
	Reconciler   *reconciler.Service
	Poller       *poller.Service
	Commands     *commands.Service
	Push         *push.Service

	badgerDB *badgerstore.BadgerDB

	// Banner state assembled from events for the presentation adapter
	mu              sync.Mutex
	connectionError string
	actionError     string
	firstLoad       bool
}

// NewApp creates and wires all tracker services. A failed session database
// degrades to an in-memory store rather than failing startup: suppression
// is then lost across restarts, never correctness.
func NewApp(config *common.Config, logger arbor.ILogger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	a := &App{
		Config:    config,
		Logger:    logger,
		firstLoad: true,
	}

	a.EventService = events.NewService(logger)

	var store interfaces.SessionStore
	badgerDB, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Warn().Err(err).Msg("Session database unavailable, falling back to in-memory suppression")
		store = memory.NewSessionStore()
	} else {
		a.badgerDB = badgerDB
		store = badgerstore.NewSessionStore(badgerDB, logger)
	}

	a.Suppressor = suppressor.NewService(store, logger)
	a.Reconciler = reconciler.NewService(a.EventService, a.Suppressor, logger, config.HideDelay(), config.ActivityLimit())

	jobClient := client.NewService(config, logger)
	a.Poller = poller.NewService(jobClient, a.Reconciler, a.EventService, logger, config.PollInterval())
	a.Commands = commands.NewService(jobClient, a.Reconciler, a.EventService, logger)

	if config.Push.Enabled {
		a.Push = push.NewService(config, a.Reconciler, logger)
	}

	if err := a.subscribeBanners(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("backend", config.Backend.BaseURL).
		Str("poll_interval", a.Poller.Interval().String()).
		Bool("push", config.Push.Enabled).
		Msg("Tracker initialized")

	return a, nil
}

// subscribeBanners keeps the connection and action error banners current.
func (a *App) subscribeBanners() error {
	if err := a.EventService.Subscribe(interfaces.EventConnectionError, func(ctx context.Context, event interfaces.Event) error {
		message, _ := event.Payload.(string)
		a.mu.Lock()
		a.connectionError = message
		a.firstLoad = false
		a.mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	if err := a.EventService.Subscribe(interfaces.EventCommandError, func(ctx context.Context, event interfaces.Event) error {
		message, _ := event.Payload.(string)
		a.mu.Lock()
		a.actionError = message
		a.mu.Unlock()
		return nil
	}); err != nil {
		return err
	}

	return a.EventService.Subscribe(interfaces.EventJobState, func(ctx context.Context, event interfaces.Event) error {
		a.mu.Lock()
		a.firstLoad = false
		a.mu.Unlock()
		return nil
	})
}

// Watch points the tracker at a knowledge base. The poller issues an
// immediate request and, when configured, the push stream attaches too.
func (a *App) Watch(ownerID string) {
	a.mu.Lock()
	a.firstLoad = true
	a.connectionError = ""
	a.actionError = ""
	a.mu.Unlock()

	a.Poller.Watch(ownerID)
	if a.Push != nil {
		a.Push.Start(ownerID)
	}
}

// Stop tears down polling and streaming without closing shared resources.
func (a *App) Stop() {
	a.Poller.Stop()
	if a.Push != nil {
		a.Push.Stop()
	}
	a.Reconciler.Retarget("")
}

// View builds the current renderable view model.
func (a *App) View() models.TrackerView {
	a.mu.Lock()
	connErr := a.connectionError
	actionErr := a.actionError
	firstLoad := a.firstLoad
	a.mu.Unlock()

	return view.Build(view.Input{
		Current:         a.Reconciler.Current(),
		LastRun:         a.Reconciler.LastRun(),
		Activity:        a.Reconciler.Entries(),
		Pending:         a.Commands.PendingActions(),
		ConnectionError: connErr,
		ActionError:     actionErr,
		FirstLoad:       firstLoad,
	})
}

// Close releases all resources.
func (a *App) Close() error {
	a.Stop()

	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close event service")
	}

	if a.badgerDB != nil {
		if err := a.badgerDB.Close(); err != nil {
			return fmt.Errorf("close session database: %w", err)
		}
	}

	return nil
}
