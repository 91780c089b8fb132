package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// SchedulerHandler exposes scheduled-job status and manual control.
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

func NewSchedulerHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// ListJobsHandler handles GET /api/admin/scheduler/jobs.
func (h *SchedulerHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.scheduler.IsRunning(),
		"jobs":    h.scheduler.GetAllJobStatuses(),
	})
}

// JobActionHandler dispatches POST /api/admin/scheduler/jobs/{name}/{action}
// for trigger, enable and disable.
func (h *SchedulerHandler) JobActionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/scheduler/jobs/")
	name, action, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		WriteError(w, http.StatusBadRequest, "Expected /api/admin/scheduler/jobs/{name}/{action}")
		return
	}

	switch action {
	case "trigger":
		// A trigger blocks for the whole job; run it in the background and
		// let the operator follow the run records.
		common.SafeGo(h.logger, "scheduler-trigger-"+name, func() {
			if err := h.scheduler.TriggerJob(name); err != nil {
				h.logger.Error().Str("job", name).Err(err).Msg("Triggered job failed")
			}
		})
		WriteStarted(w, "Job "+name+" triggered")
	case "enable":
		if err := h.scheduler.EnableJob(name); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteSuccess(w, "Job "+name+" enabled")
	case "disable":
		if err := h.scheduler.DisableJob(name); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteSuccess(w, "Job "+name+" disabled")
	default:
		WriteError(w, http.StatusBadRequest, "Unknown scheduler action "+action)
	}
}
