package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// StatusHandler serves corpus health, version and liveness.
type StatusHandler struct {
	pipeline  interfaces.PipelineService
	metrics   interfaces.MetricStorage
	logger    arbor.ILogger
	startedAt time.Time
}

func NewStatusHandler(pipeline interfaces.PipelineService, metrics interfaces.MetricStorage, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		pipeline:  pipeline,
		metrics:   metrics,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// GetStatusHandler handles GET /api/status: corpus stats plus live operations.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.pipeline.Stats()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to gather stats: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      stats,
		"operations": h.pipeline.Running(),
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"version":    common.GetFullVersion(),
	})
}

// VersionHandler handles GET /api/version.
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// HealthHandler handles GET /api/health.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MetricsHandler handles GET /api/admin/metrics?name=&limit=: recent rows for
// one named metric, newest first.
func (h *StatusHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "name parameter is required")
		return
	}
	limit := QueryInt(r, "limit", 100)

	rows, err := h.metrics.ListByName(name, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list metrics: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"metrics": rows,
	})
}

// NotFoundHandler answers unmatched /api/ paths with a JSON 404.
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found: "+r.URL.Path)
}
