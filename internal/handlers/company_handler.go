package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// CompanyHandler serves company reads plus on-demand single-company crawl
// and maintenance.
type CompanyHandler struct {
	companies   interfaces.CompanyStorage
	jobs        interfaces.JobStorage
	crawler     interfaces.CrawlerService
	maintenance interfaces.MaintenanceService
	logger      arbor.ILogger
}

func NewCompanyHandler(
	companies interfaces.CompanyStorage,
	jobs interfaces.JobStorage,
	crawler interfaces.CrawlerService,
	maintenance interfaces.MaintenanceService,
	logger arbor.ILogger,
) *CompanyHandler {
	return &CompanyHandler{
		companies:   companies,
		jobs:        jobs,
		crawler:     crawler,
		maintenance: maintenance,
		logger:      logger,
	}
}

// ListCompaniesHandler handles GET /api/companies?ats_family=&page=&pageSize=.
func (h *CompanyHandler) ListCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var (
		companies []*models.Company
		err       error
	)
	if family := r.URL.Query().Get("ats_family"); family != "" {
		companies, err = h.companies.ListByATSFamily(family)
	} else {
		companies, err = h.companies.ListActive()
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list companies: "+err.Error())
		return
	}

	page, pageSize := GetPaginationParams(r)
	start, end, meta := PageBounds(len(companies), page, pageSize)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"companies":  companies[start:end],
		"pagination": meta,
	})
}

// GetCompanyHandler handles GET /api/companies/{id}, returning the company
// with its active jobs.
func (h *CompanyHandler) GetCompanyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/companies/", "")
	company, err := h.companies.Get(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Company not found")
		return
	}

	jobs, err := h.jobs.ListActiveByCompany(id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list company jobs: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"company":     company,
		"active_jobs": len(jobs),
		"jobs":        jobs,
	})
}

// CrawlCompanyHandler handles POST /api/admin/companies/{id}/crawl. The crawl
// runs synchronously; one company is bounded work.
func (h *CompanyHandler) CrawlCompanyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/admin/companies/", "/crawl")
	if _, err := h.companies.Get(id); err != nil {
		WriteError(w, http.StatusNotFound, "Company not found")
		return
	}

	result := h.crawler.CrawlCompany(r.Context(), id)
	WriteJSON(w, http.StatusOK, result)
}

// MaintainCompanyHandler handles POST /api/admin/companies/{id}/maintain.
func (h *CompanyHandler) MaintainCompanyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/admin/companies/", "/maintain")
	if _, err := h.companies.Get(id); err != nil {
		WriteError(w, http.StatusNotFound, "Company not found")
		return
	}

	result := h.maintenance.MaintainCompany(r.Context(), id)
	WriteJSON(w, http.StatusOK, result)
}
