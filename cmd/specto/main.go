// -----------------------------------------------------------------------
// specto - live crawl-progress tracker CLI
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/app"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/ternarybob/specto/internal/models"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	ownerID      = flag.String("owner", "", "Knowledge base id to watch (required)")
	ownerIDO     = flag.String("o", "", "Knowledge base id to watch (shorthand)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Specto version %s\n", common.GetVersion())
		os.Exit(0)
	}

	owner := *ownerID
	if *ownerIDO != "" {
		owner = *ownerIDO
	}
	if owner == "" {
		fmt.Fprintln(os.Stderr, "Error: -owner is required")
		flag.Usage()
		os.Exit(1)
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	tracker, err := app.NewApp(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize tracker")
	}
	defer tracker.Close()

	if err := subscribeFeed(tracker); err != nil {
		logger.Fatal().Err(err).Msg("Failed to subscribe to tracker events")
	}

	logger.Info().Str("owner_id", owner).Msg("Watching crawl activity")
	tracker.Watch(owner)

	// Block until interrupted
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	tracker.Stop()
}

// subscribeFeed prints state transitions and fresh activity entries as the
// reconciler applies them.
func subscribeFeed(tracker *app.App) error {
	seen := make(map[string]bool)

	if err := tracker.EventService.Subscribe(interfaces.EventJobState, func(ctx context.Context, event interfaces.Event) error {
		change, ok := event.Payload.(models.StateChange)
		if !ok {
			return nil
		}

		switch {
		case change.Running && change.Job != nil:
			logger.Info().
				Str("job_id", change.Job.JobID).
				Str("status", string(change.Job.Status)).
				Int("saved", change.Job.Saved).
				Int("fetched", change.Job.Fetched).
				Msg("Crawl running")
		case change.LastRun != nil:
			logger.Info().
				Str("job_id", change.LastRun.JobID).
				Str("status", string(change.LastRun.Status)).
				Int("saved", change.LastRun.Saved).
				Msg("Crawl finished")
		default:
			logger.Info().Msg("No crawl activity")
		}

		for _, entry := range tracker.Reconciler.Entries() {
			if seen[entry.ID] {
				continue
			}
			seen[entry.ID] = true
			logger.Info().
				Str("kind", string(entry.Kind)).
				Msg(entry.Message)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := tracker.EventService.Subscribe(interfaces.EventDocumentsSaved, func(ctx context.Context, event interfaces.Event) error {
		delta, ok := event.Payload.(models.SavedDelta)
		if !ok {
			return nil
		}
		logger.Debug().Int("delta", delta.Delta).Msg("Documents saved")
		return nil
	}); err != nil {
		return err
	}

	return tracker.EventService.Subscribe(interfaces.EventConnectionError, func(ctx context.Context, event interfaces.Event) error {
		message, _ := event.Payload.(string)
		if message != "" {
			logger.Warn().Str("error", message).Msg("Connection problem, continuing to poll")
		}
		return nil
	})
}
