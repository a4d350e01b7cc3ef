package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tivon521/grok2aoi/pkg/batch"
	"github.com/Tivon521/grok2aoi/pkg/config"
	"github.com/Tivon521/grok2aoi/pkg/conversation"
	"github.com/Tivon521/grok2aoi/pkg/credential"
	"github.com/Tivon521/grok2aoi/pkg/stats"
	"github.com/Tivon521/grok2aoi/pkg/storage"
	"github.com/Tivon521/grok2aoi/pkg/telemetry/health"
	"github.com/Tivon521/grok2aoi/pkg/telemetry/logging"
	"github.com/Tivon521/grok2aoi/pkg/telemetry/metrics"
	"github.com/Tivon521/grok2aoi/pkg/upstream"
)

// App holds every process-wide collaborator of the gateway.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         storage.BlobStore
	Metrics       *metrics.Collector
	Conversations *conversation.Manager
	Credentials   *credential.Pool
	Upstream      upstream.Client
	Tasks         *batch.Registry
	Runner        *batch.Runner
	Stats         *stats.Tracker

	closeLogger func() error

	watcher       *credential.Watcher
	watcherCancel context.CancelFunc
	watcherWG     sync.WaitGroup
}

// NewApp builds the application graph from configuration. Nothing runs
// yet; Start brings the background pieces up.
func NewApp(cfg *config.Config) (*App, error) {
	logger, closeLogger, err := logging.Setup(cfg.Telemetry.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		closeLogger()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	var conversationMetrics *metrics.ConversationMetrics
	var credentialMetrics *metrics.CredentialMetrics
	if collector != nil {
		conversationMetrics = collector.Conversations()
		credentialMetrics = collector.Credentials()
	}

	pool := credential.NewPool(credentialMetrics)
	if err := pool.LoadFile(cfg.Credentials.File); err != nil {
		// An unreadable credential file leaves the pool empty; the
		// watcher may still pick a fixed file up later.
		logger.Warn("credential file not loaded", "file", cfg.Credentials.File, "error", err)
	}

	app := &App{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Metrics:       collector,
		Conversations: conversation.NewManager(cfg.Conversations, store, conversationMetrics),
		Credentials:   pool,
		Upstream:      upstream.NewHTTPClient(cfg.Upstream),
		Tasks:         batch.NewRegistry(cfg.Batch.TaskRetention),
		Runner:        batch.NewRunner(cfg.Batch.Workers),
		Stats:         stats.NewTracker(store, 0),
		closeLogger:   closeLogger,
	}
	return app, nil
}

// Start brings up the background pieces: persisted state loading, the
// expiry sweep, the statistics flusher and the credential file watcher.
func (a *App) Start(ctx context.Context) error {
	if err := a.Conversations.Start(ctx); err != nil {
		return fmt.Errorf("failed to start conversation manager: %w", err)
	}
	if err := a.Stats.Start(ctx); err != nil {
		return fmt.Errorf("failed to start statistics tracker: %w", err)
	}

	if a.Config.Credentials.Watch {
		watcher, err := credential.NewWatcher(a.Config.Credentials.File, a.Config.Credentials.WatchDebounce)
		if err != nil {
			a.Logger.Warn("credential watcher disabled", "error", err)
		} else {
			a.watcher = watcher
			watchCtx, cancel := context.WithCancel(context.Background())
			a.watcherCancel = cancel
			a.watcherWG.Add(1)
			go func() {
				defer a.watcherWG.Done()
				if err := watcher.Watch(watchCtx, func() error {
					return a.Credentials.LoadFile(a.Config.Credentials.File)
				}); err != nil && watchCtx.Err() == nil {
					a.Logger.Error("credential watcher stopped", "error", err)
				}
			}()
		}
	}

	a.Logger.Info("application started",
		"storage_backend", a.Config.Storage.Backend,
		"credential_file", a.Config.Credentials.File,
	)
	return nil
}

// Close tears the application down in reverse dependency order and
// flushes pending state.
func (a *App) Close() error {
	if a.watcherCancel != nil {
		a.watcherCancel()
		a.watcherWG.Wait()
	}

	a.Conversations.Close()

	var firstErr error
	if err := a.Stats.Close(); err != nil {
		firstErr = err
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	a.Logger.Info("application stopped")
	if a.closeLogger != nil {
		if err := a.closeLogger(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// healthChecker builds the readiness probes over the app's
// dependencies.
func (a *App) healthChecker() *health.Checker {
	checker := health.New(0)

	checker.RegisterCheck("storage", func(ctx context.Context) error {
		var probe struct{}
		_, err := a.Store.Load(ctx, "health_probe", &probe)
		return err
	})
	checker.RegisterCheck("credentials", func(ctx context.Context) error {
		if len(a.Credentials.ActiveTokens()) == 0 {
			return errors.New("no eligible credentials in pool")
		}
		return nil
	})
	return checker
}
