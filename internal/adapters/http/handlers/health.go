// Package handlers holds the gin handlers of the quote API and its probes.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// BuildInfo is served on /-/build. Version, Commit and BuildTime come from
// -ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo fills GoVersion from the running toolchain.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime, GoVersion: runtime.Version()}
}

// HealthHandler serves the operational routes under /-/.
type HealthHandler struct {
	registry ports.HealthRegistry
	build    BuildInfo
	gatherer prometheus.Gatherer
}

// NewHealthHandler serves metrics from the default Prometheus registry.
func NewHealthHandler(registry ports.HealthRegistry, build BuildInfo) *HealthHandler {
	return &HealthHandler{registry: registry, build: build, gatherer: prometheus.DefaultGatherer}
}

// WithGatherer replaces the registry served on /-/metrics.
func (h *HealthHandler) WithGatherer(g prometheus.Gatherer) *HealthHandler {
	h.gatherer = g
	return h
}

// Register mounts live, ready, build and metrics on rg.
func (h *HealthHandler) Register(rg *gin.RouterGroup) {
	rg.Use(noStore)
	rg.GET("/live", h.Live)
	rg.GET("/ready", h.Ready)
	rg.GET("/build", h.Build)
	rg.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Next()
}

// Live answers 200 while the process runs. It never checks dependencies.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type readyResponse struct {
	Status    ports.HealthStatus            `json:"status"`
	Checks    map[string]*ports.CheckResult `json:"checks"`
	CheckedAt time.Time                     `json:"checkedAt"`
}

// Ready answers 503 only when a critical check fails. A failing optional
// check, such as the remote, still answers 200 with status "degraded"
// because quotes keep being served locally.
func (h *HealthHandler) Ready(c *gin.Context) {
	result := h.registry.CheckAll(c.Request.Context())

	code := http.StatusOK
	if result.Status == ports.HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	checks := result.Checks
	if checks == nil {
		checks = map[string]*ports.CheckResult{}
	}

	c.JSON(code, readyResponse{Status: result.Status, Checks: checks, CheckedAt: result.Timestamp})
}

// Build serves the build metadata.
func (h *HealthHandler) Build(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}
