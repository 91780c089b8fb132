package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// VerifyHandler exposes board-presence verification: batch sweeps, single-job
// checks and per-board stats.
type VerifyHandler struct {
	verifier interfaces.VerifierService
	logger   arbor.ILogger
}

func NewVerifyHandler(verifier interfaces.VerifierService, logger arbor.ILogger) *VerifyHandler {
	return &VerifyHandler{
		verifier: verifier,
		logger:   logger,
	}
}

// RunVerifyHandler handles POST /api/admin/verify/run {board, limit}. The
// sweep runs in the background under a VerificationRun record.
func (h *VerifyHandler) RunVerifyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Board string `json:"board"`
		Limit int    `json:"limit"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	if req.Board == "" {
		WriteError(w, http.StatusBadRequest, "A board is required")
		return
	}

	board, limit := req.Board, req.Limit
	common.SafeGo(h.logger, "verify-batch-"+board, func() {
		if _, err := h.verifier.VerifyBatch(context.Background(), board, limit); err != nil {
			h.logger.Error().Str("board", board).Err(err).Msg("Verification sweep failed")
		}
	})

	WriteStarted(w, "Verification sweep started for "+board)
}

// VerifyJobHandler handles POST /api/admin/jobs/{id}/verify {boards},
// checking one job synchronously. An empty boards list checks all supported
// boards.
func (h *VerifyHandler) VerifyJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/admin/jobs/", "/verify")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job id is required")
		return
	}

	var req struct {
		Boards []string `json:"boards"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	results, err := h.verifier.VerifyJob(r.Context(), id, req.Boards)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Verification failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": id,
		"boards": results,
	})
}

// VerifyStatsHandler handles GET /api/admin/verify/stats?board=.
func (h *VerifyHandler) VerifyStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.verifier.Stats(r.URL.Query().Get("board"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to gather verification stats: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
