// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/notify"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// background holds the long-running workers stopped on shutdown.
type background struct {
	scheduler *app.Scheduler
	pusher    *app.Pusher
	store     *sqlite.KV
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
		Redact: cfg.Log.Redact,
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Open the durable quote store and the session store
	store, err := sqlite.Open(ctx, sqlite.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening quote store: %w", err)
	}

	session := memory.New()

	// 6. Create HTTP client for the remote quote source
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Services.Remote.BaseURL,
		ServiceName: cfg.Services.Remote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	// 7. Create the remote adapter (ACL pattern)
	remote := acl.NewPlaceholderClient(acl.PlaceholderClientConfig{
		Client:           httpClient,
		ServiceName:      cfg.Services.Remote.Name,
		SentinelCategory: cfg.Sync.SentinelCategory,
		Logger:           logger,
	})

	// 8. Create the application layer
	metrics, err := app.NewMetrics()
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("creating metrics: %w", err)
	}

	board := notify.NewBoard(notify.BoardConfig{
		TTL:    cfg.Notify.TTL,
		Logger: logger,
	})

	pusher := app.NewPusher(app.PusherConfig{
		Remote:    remote,
		Workers:   cfg.Sync.Workers,
		QueueSize: cfg.Sync.QueueSize,
		Timeout:   cfg.Sync.Timeout,
		Metrics:   metrics,
		Logger:    logger,
	})
	pusher.Start(ctx)

	go drainPushResults(ctx, logger, pusher)

	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Store:       store,
		Session:     session,
		Publisher:   board,
		PushOnAdd:   cfg.Sync.PushOnAdd,
		PushImports: cfg.Sync.PushImports,
		Metrics:     metrics,
		Logger:      logger,
	})
	quoteService.Init(ctx)

	syncService := app.NewSyncService(app.SyncServiceConfig{
		Remote:    remote,
		Quotes:    quoteService,
		Pusher:    pusher,
		BatchSize: cfg.Sync.BatchSize,
		Timeout:   cfg.Sync.Timeout,
		Metrics:   metrics,
		Logger:    logger,
	})

	quoteService.ForwardTo(syncService)

	bg := background{pusher: pusher, store: store}

	if cfg.Sync.Enabled {
		bg.scheduler = app.NewScheduler(app.SchedulerConfig{
			Name:     "remote-sync",
			Interval: cfg.Sync.Interval,
			Task:     syncService.Run,
			Logger:   logger,
		})
		bg.scheduler.Start(ctx)
	}

	// 9. Register health checks. The remote only degrades readiness.
	healthRegistry := ports.NewHealthRegistry()

	if err := healthRegistry.Register(store); err != nil {
		bg.stop(logger)
		return fmt.Errorf("registering store health check: %w", err)
	}

	if err := healthRegistry.RegisterOptional(remote); err != nil {
		bg.stop(logger)
		return fmt.Errorf("registering remote health check: %w", err)
	}

	if err := app.RegisterStoreSize(prometheus.DefaultRegisterer, quoteService.Len); err != nil {
		bg.stop(logger)
		return fmt.Errorf("registering store size gauge: %w", err)
	}

	// 10. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)
	quoteHandler := handlers.NewQuoteHandler(handlers.QuoteHandlerConfig{
		Quotes:    quoteService,
		Sync:      syncService,
		Scheduler: bg.scheduler,
		Board:     board,
	})

	// 11. Create HTTP server and router
	server := http.New(&cfg.Server, logger)
	routes := http.NewDefaultRouterConfig(logger, &cfg.App, healthHandler, quoteHandler)
	routes.Timeout = cfg.Server.RequestTimeout
	http.SetupRouter(server.Engine(), routes)

	// 12. Start server (non-blocking)
	serverErr, err := server.Start()
	if err != nil {
		bg.stop(logger)
		return err
	}

	// 13. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout, bg)
}

// drainPushResults logs background push outcomes until ctx ends.
func drainPushResults(ctx context.Context, logger *slog.Logger, pusher *app.Pusher) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-pusher.Results():
			if r.Err == nil {
				logger.Log(ctx, logging.LevelTrace, "push delivered", slog.String("category", r.Quote.Category))
			}
		}
	}
}

// stop halts the scheduler first so no new sync starts, then drains the
// push queue, then closes the store.
func (b background) stop(logger *slog.Logger) {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}

	b.pusher.Stop()

	if err := b.store.Close(); err != nil {
		logger.Error("closing quote store", slog.Any("error", err))
	}
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server and background workers.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
	bg background,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		bg.stop(logger)
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	err := server.Shutdown(shutdownCtx)

	bg.stop(logger)

	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
