package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds every /api/v1 request except the import.
const DefaultRequestTimeout = 30 * time.Second

// importPath may stream a large document, so it runs without a deadline.
const importPath = "/api/v1/quotes/import"

const defaultServiceName = "quote-sync"

// RouterConfig lists what SetupRouter mounts. Nil handlers are skipped.
type RouterConfig struct {
	Logger        *slog.Logger
	AppConfig     *config.AppConfig
	HealthHandler *handlers.HealthHandler
	QuoteHandler  *handlers.QuoteHandler

	// Timeout is the /api/v1 deadline; zero means none.
	Timeout time.Duration
}

// SetupRouter installs the middleware chain and mounts the probes under /-
// and the quote API under /api/v1.
//
// Chain order: recovery, logger seeding, request and correlation IDs,
// tracing, HTTP metrics, access log. Only /api/v1 gets the timeout.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	name := defaultServiceName
	if cfg.AppConfig != nil && cfg.AppConfig.Name != "" {
		name = cfg.AppConfig.Name
	}

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.WithLogger(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(name),
		telemetry.Middleware(),
		middleware.Logging(cfg.Logger),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Register(engine.Group("/-"))
	}

	api := engine.Group("/api/v1", middleware.Timeout(cfg.Timeout, importPath))

	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterQuoteRoutes(api)
	}
}

// NewDefaultRouterConfig fills a RouterConfig with DefaultRequestTimeout.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	health *handlers.HealthHandler,
	quotes *handlers.QuoteHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AppConfig:     appCfg,
		HealthHandler: health,
		QuoteHandler:  quotes,
		Timeout:       DefaultRequestTimeout,
	}
}
