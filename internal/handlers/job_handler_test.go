package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

func newJobHandlerFixture(t *testing.T) (*JobHandler, *models.Company, *models.Job) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	companies := badger.NewCompanyStorage(db, logger)
	jobs := badger.NewJobStorage(db, logger)

	company := &models.Company{ID: uuid.NewString(), Name: "Acme", Domain: "acme.example", IsActive: true}
	require.NoError(t, companies.Create(company))

	job, err := jobs.Upsert(&models.Job{
		ID:                  uuid.NewString(),
		CompanyID:           company.ID,
		SourceURL:           "https://boards.greenhouse.io/acme/jobs/1",
		Title:               "Platform Engineer",
		RoleFamily:          "software_engineering",
		DescriptionMarkdown: "## About the role\n\nBuild **infrastructure**.",
		IsActive:            true,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	})
	require.NoError(t, err)

	return NewJobHandler(jobs, companies, logger), company, job
}

func TestGetJobRendersDescriptionHTML(t *testing.T) {
	h, _, job := newJobHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	h.GetJobHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		DescriptionHTML string                 `json:"description_html"`
		Company         map[string]interface{} `json:"company"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.DescriptionHTML, "<h2")
	assert.Contains(t, body.DescriptionHTML, "<strong>infrastructure</strong>")
	assert.Equal(t, "Acme", body.Company["name"])
}

func TestGetJobNotFound(t *testing.T) {
	h, _, _ := newJobHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	rec := httptest.NewRecorder()
	h.GetJobHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsStripsBulkFields(t *testing.T) {
	h, company, _ := newJobHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?company_id="+company.ID, nil)
	rec := httptest.NewRecorder()
	h.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs       []map[string]interface{} `json:"jobs"`
		Pagination PaginationResponse       `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "Platform Engineer", body.Jobs[0]["title"])
	assert.NotContains(t, body.Jobs[0], "description_markdown")
	assert.NotContains(t, body.Jobs[0], "embedding")
	assert.Equal(t, 1, body.Pagination.TotalItems)
}

func TestListJobsRoleFamilyFilter(t *testing.T) {
	h, _, _ := newJobHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?role_family=design", nil)
	rec := httptest.NewRecorder()
	h.ListJobsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs []map[string]interface{} `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Empty(t, body.Jobs)
}
