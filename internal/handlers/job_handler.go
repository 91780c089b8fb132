package handlers

import (
	"bytes"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// JobHandler serves canonical job reads. Job detail renders the stored
// description markdown to HTML for the operator UI.
type JobHandler struct {
	jobs      interfaces.JobStorage
	companies interfaces.CompanyStorage
	markdown  goldmark.Markdown
	logger    arbor.ILogger
}

func NewJobHandler(jobs interfaces.JobStorage, companies interfaces.CompanyStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		companies: companies,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:    logger,
	}
}

// ListJobsHandler handles GET /api/jobs?company_id=&role_family=&page=&pageSize=.
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var (
		jobs []*models.Job
		err  error
	)
	if companyID := r.URL.Query().Get("company_id"); companyID != "" {
		jobs, err = h.jobs.ListActiveByCompany(companyID)
	} else {
		jobs, err = h.jobs.ListActive(0)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs: "+err.Error())
		return
	}

	if family := r.URL.Query().Get("role_family"); family != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.RoleFamily == family {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	// Embeddings are large and useless to a list view.
	summaries := make([]*models.Job, len(jobs))
	for i, job := range jobs {
		slim := *job
		slim.Embedding = nil
		slim.Description = ""
		slim.DescriptionMarkdown = ""
		summaries[i] = &slim
	}

	page, pageSize := GetPaginationParams(r)
	start, end, meta := PageBounds(len(summaries), page, pageSize)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":       summaries[start:end],
		"pagination": meta,
	})
}

// GetJobHandler handles GET /api/jobs/{id}. The response carries the job, its
// company, and the description rendered to HTML.
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathSuffix(r.URL.Path, "/api/jobs/", "")
	job, err := h.jobs.Get(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	response := map[string]interface{}{
		"job":              job,
		"description_html": h.renderDescription(job),
	}
	if company, err := h.companies.Get(job.CompanyID); err == nil {
		response["company"] = company
	}
	WriteJSON(w, http.StatusOK, response)
}

// renderDescription converts the job's markdown description to HTML, falling
// back to nothing when the job has no markdown or rendering fails.
func (h *JobHandler) renderDescription(job *models.Job) string {
	if job.DescriptionMarkdown == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(job.DescriptionMarkdown), &buf); err != nil {
		h.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to render job description")
		return ""
	}
	return buf.String()
}
