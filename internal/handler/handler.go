package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mail-sticky-go/internal/ai"
	"mail-sticky-go/internal/ingest"
	"mail-sticky-go/internal/lifecycle"
	"mail-sticky-go/internal/repository"
	"mail-sticky-go/internal/scheduler"
)

// Dependencies are the services the HTTP handlers call into
type Dependencies struct {
	Repo        *repository.Repository
	Lifecycle   *lifecycle.Manager
	Scheduler   *scheduler.Scheduler
	Status      *ingest.StatusBoard
	Diagnostics *ingest.Diagnostics
	Adapter     *ai.Adapter
	Gatherer    prometheus.Gatherer
	LogFile     string
	Retention   time.Duration
}

// Handlers contains all HTTP handlers
type Handlers struct {
	repo        *repository.Repository
	lifecycle   *lifecycle.Manager
	scheduler   *scheduler.Scheduler
	status      *ingest.StatusBoard
	diagnostics *ingest.Diagnostics
	adapter     *ai.Adapter
	gatherer    prometheus.Gatherer
	logFile     string
	retention   time.Duration
}

// NewHandlers creates new HTTP handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		repo:        deps.Repo,
		lifecycle:   deps.Lifecycle,
		scheduler:   deps.Scheduler,
		status:      deps.Status,
		diagnostics: deps.Diagnostics,
		adapter:     deps.Adapter,
		gatherer:    deps.Gatherer,
		logFile:     deps.LogFile,
		retention:   deps.Retention,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	} else {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/notes", h.ListNotes)
		api.POST("/notes", h.CreateNote)
		api.PATCH("/notes/:id/complete", h.CompleteNote)
		api.DELETE("/notes/:id", h.DeleteNote)
		api.POST("/notes/archive-completed", h.ArchiveCompleted)

		api.POST("/poll", h.Poll)
		api.GET("/status", h.GetStatus)

		api.GET("/diagnostics/last-error", h.GetLastError)
		api.GET("/diagnostics/errors", h.GetErrors)
		api.POST("/diagnostics/ai-self-test", h.AISelfTest)
		api.GET("/diagnostics/log", h.GetLogTail)

		api.GET("/session/:key", h.GetSessionValue)
		api.PUT("/session/:key", h.PutSessionValue)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.repo.Ping(c.Request.Context()); err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}
	if last := h.scheduler.GetLastRun(); !last.IsZero() {
		response.Metrics["last_run"] = last.Format(time.RFC3339)
	}
	response.Metrics["last_status"] = h.status.Latest().Text

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
