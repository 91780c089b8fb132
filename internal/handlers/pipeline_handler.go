package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// PipelineHandler exposes pipeline runs, stage runs, run inspection and
// cancellation. Long executions are launched on background goroutines and
// followed through their persisted run rows.
type PipelineHandler struct {
	pipeline interfaces.PipelineService
	runs     interfaces.RunStorage
	logger   arbor.ILogger
}

func NewPipelineHandler(pipeline interfaces.PipelineService, runs interfaces.RunStorage, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		pipeline: pipeline,
		runs:     runs,
		logger:   logger,
	}
}

// RunPipelineHandler handles POST /api/admin/pipeline/run. The body is an
// optional PipelineOptions document; the run executes in the background and
// is followed through GET /api/admin/runs.
func (h *PipelineHandler) RunPipelineHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var opts models.PipelineOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	if h.operationLive(models.StageFullPipeline) {
		WriteError(w, http.StatusConflict, "Full pipeline is already running")
		return
	}

	common.SafeGo(h.logger, "pipeline-run", func() {
		if _, err := h.pipeline.RunFullPipeline(context.Background(), opts); err != nil && !errors.Is(err, interfaces.ErrOperationRunning) {
			h.logger.Error().Err(err).Msg("Full pipeline run failed")
		}
	})

	WriteStarted(w, "Full pipeline started")
}

// RunStageHandler handles POST /api/admin/pipeline/{stage}/run. Query or body
// parameters: ats_family narrows crawl/enrichment, limit caps stage work.
func (h *PipelineHandler) RunStageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	stage := PathSuffix(r.URL.Path, "/api/admin/pipeline/", "/run")
	switch stage {
	case models.StageDiscovery, models.StageCrawl, models.StageEnrichment, models.StageEmbeddings:
	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown pipeline stage %q", stage))
		return
	}

	var req struct {
		ATSFamily string `json:"ats_family"`
		Limit     int    `json:"limit"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	if req.ATSFamily == "" {
		req.ATSFamily = r.URL.Query().Get("ats_family")
	}
	if req.Limit == 0 {
		req.Limit = QueryInt(r, "limit", 0)
	}

	if h.operationLive(stageOperationKey(stage, req.ATSFamily)) {
		WriteError(w, http.StatusConflict, fmt.Sprintf("Stage %q is already running", stage))
		return
	}

	family, limit := req.ATSFamily, req.Limit
	common.SafeGo(h.logger, "pipeline-stage-"+stage, func() {
		if _, err := h.pipeline.RunStage(context.Background(), stage, family, limit); err != nil && !errors.Is(err, interfaces.ErrOperationRunning) {
			h.logger.Error().Str("stage", stage).Err(err).Msg("Pipeline stage failed")
		}
	})

	WriteStarted(w, fmt.Sprintf("Stage %q started", stage))
}

// ListRunsHandler handles GET /api/admin/runs.
func (h *PipelineHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryInt(r, "limit", 20)
	runs, err := h.runs.ListPipelineRuns(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list runs: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunHandler handles GET /api/admin/runs/{id}. The id may belong to any
// run type; each store is tried in turn.
func (h *PipelineHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/admin/runs/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run id is required")
		return
	}

	if run, err := h.runs.GetPipelineRun(id); err == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"type": "pipeline", "run": run})
		return
	}
	if run, err := h.runs.GetDiscoveryRun(id); err == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"type": "discovery", "run": run})
		return
	}
	if run, err := h.runs.GetMaintenanceRun(id); err == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"type": "maintenance", "run": run})
		return
	}
	if run, err := h.runs.GetVerificationRun(id); err == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"type": "verification", "run": run})
		return
	}
	WriteError(w, http.StatusNotFound, "Run not found")
}

// CancelRunHandler handles POST /api/admin/runs/{id}/cancel. Cancellation is
// cooperative; the owning loop notices at its next checkpoint.
func (h *PipelineHandler) CancelRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/admin/runs/", "/cancel")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run id is required")
		return
	}

	switch err := h.pipeline.CancelRun(id); {
	case err == nil:
		WriteSuccess(w, "Cancellation requested")
	case errors.Is(err, interfaces.ErrRunNotFound):
		WriteError(w, http.StatusNotFound, "Run not found")
	case errors.Is(err, interfaces.ErrRunNotRunning):
		WriteError(w, http.StatusBadRequest, "Run is not running")
	default:
		WriteError(w, http.StatusInternalServerError, "Failed to cancel run: "+err.Error())
	}
}

// OperationsHandler handles GET /api/admin/operations, listing in-flight
// exclusive operations.
func (h *PipelineHandler) OperationsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ops := h.pipeline.Running()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
	})
}

// operationLive is a pre-flight courtesy check so an obviously conflicting
// request gets a 409 instead of a silently failed background run. The
// pipeline's registry remains the authority; a race here just means the
// refused run is logged instead.
func (h *PipelineHandler) operationLive(key string) bool {
	for _, op := range h.pipeline.Running() {
		if op.Key == key {
			return true
		}
	}
	return false
}

// stageOperationKey mirrors the pipeline registry's key scheme: crawl and
// enrichment are exclusive per ATS family, everything else per stage.
func stageOperationKey(stage, family string) string {
	switch stage {
	case models.StageCrawl:
		if family == "" {
			return "crawl_all"
		}
		return "crawl_" + family
	case models.StageEnrichment:
		if family == "" {
			return "enrich_all"
		}
		return "enrich_" + family
	default:
		return stage
	}
}
