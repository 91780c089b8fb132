package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// DiscoveryHandler exposes discovery runs, the review queue and manual
// company admission.
type DiscoveryHandler struct {
	discovery interfaces.DiscoveryService
	queue     interfaces.QueueStorage
	logger    arbor.ILogger
}

func NewDiscoveryHandler(discovery interfaces.DiscoveryService, queue interfaces.QueueStorage, logger arbor.ILogger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discovery: discovery,
		queue:     queue,
		logger:    logger,
	}
}

// RunDiscoveryHandler handles POST /api/admin/discovery/run. The optional
// body names sources; an empty list runs the configured set. Sources execute
// in the background under per-source run records.
func (h *DiscoveryHandler) RunDiscoveryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Sources []string `json:"sources"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	sources := req.Sources
	common.SafeGo(h.logger, "discovery-run", func() {
		if _, err := h.discovery.RunDiscovery(context.Background(), sources); err != nil {
			h.logger.Error().Err(err).Msg("Discovery run failed")
		}
	})

	WriteStarted(w, "Discovery started")
}

// ProcessQueueHandler handles POST /api/admin/discovery/queue/process,
// draining up to limit pending queue items synchronously.
func (h *DiscoveryHandler) ProcessQueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Limit int `json:"limit"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	if req.Limit == 0 {
		req.Limit = QueryInt(r, "limit", 0)
	}

	result, err := h.discovery.ProcessQueue(r.Context(), req.Limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Queue processing failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// StatsHandler handles GET /api/admin/discovery/stats.
func (h *DiscoveryHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := h.discovery.Stats()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to gather discovery stats: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// ListQueueHandler handles GET /api/admin/discovery/queue?status=&limit=.
func (h *DiscoveryHandler) ListQueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := models.QueueStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.QueueStatusReview
	}
	limit := QueryInt(r, "limit", 100)

	items, err := h.queue.ListByStatus(status, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list queue items: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"items":  items,
		"count":  len(items),
	})
}

// RetryQueueItemHandler handles POST /api/admin/discovery/queue/{id}/retry,
// returning a failed or review item to the pending pool with a fresh retry
// budget.
func (h *DiscoveryHandler) RetryQueueItemHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/admin/discovery/queue/", "/retry")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Queue item id is required")
		return
	}

	item, err := h.queue.Get(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Queue item not found")
		return
	}
	if item.Status != models.QueueStatusFailed && item.Status != models.QueueStatusReview {
		WriteError(w, http.StatusBadRequest, "Only failed or review items can be retried")
		return
	}

	item.Status = models.QueueStatusPending
	item.RetryCount = 0
	item.ErrorMessage = ""
	item.ProcessedAt = nil
	if err := h.queue.Update(item); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to retry queue item: "+err.Error())
		return
	}
	WriteSuccess(w, "Queue item returned to pending")
}

// DiscoverCompanyHandler handles POST /api/admin/companies/discover: resolve
// one operator-supplied company synchronously and return the resulting row.
func (h *DiscoveryHandler) DiscoverCompanyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Name       string `json:"name"`
		Domain     string `json:"domain"`
		WebsiteURL string `json:"website_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	company, err := h.discovery.DiscoverCompany(r.Context(), req.Name, req.Domain, req.WebsiteURL)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Discovery failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, company)
}
