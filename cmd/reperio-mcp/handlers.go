package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleSearchJobs implements the search_jobs tool
func handleSearchJobs(sm interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.ToLower(request.GetString("query", ""))
		roleFamily := request.GetString("role_family", "")
		locationType := request.GetString("location_type", "")
		companyID := request.GetString("company_id", "")

		limit := request.GetInt("limit", 20)
		if limit > 100 {
			limit = 100
		}

		var (
			jobs []*models.Job
			err  error
		)
		if companyID != "" {
			jobs, err = sm.JobStorage().ListActiveByCompany(companyID)
		} else {
			jobs, err = sm.JobStorage().ListActive(0)
		}
		if err != nil {
			logger.Error().Err(err).Msg("Job search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		matches := make([]*models.Job, 0, limit)
		for _, job := range jobs {
			if roleFamily != "" && job.RoleFamily != roleFamily {
				continue
			}
			if locationType != "" && job.LocationType != locationType {
				continue
			}
			if query != "" &&
				!strings.Contains(strings.ToLower(job.Title), query) &&
				!strings.Contains(strings.ToLower(job.Description), query) {
				continue
			}
			matches = append(matches, job)
			if len(matches) >= limit {
				break
			}
		}

		companies := companyNames(sm, matches)
		return textResult(formatJobResults(request.GetString("query", ""), matches, companies)), nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(sm interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return textResult("Error: job_id parameter is required"), nil
		}

		job, err := sm.JobStorage().Get(jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
			return textResult(fmt.Sprintf("Job not found: %v", err)), nil
		}

		var company *models.Company
		if job.CompanyID != "" {
			company, _ = sm.CompanyStorage().Get(job.CompanyID)
		}
		return textResult(formatJob(job, company)), nil
	}
}

// handleListCompanies implements the list_companies tool
func handleListCompanies(sm interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		atsFamily := request.GetString("ats_family", "")
		limit := request.GetInt("limit", 50)

		var (
			companies []*models.Company
			err       error
		)
		if atsFamily != "" {
			companies, err = sm.CompanyStorage().ListByATSFamily(atsFamily)
		} else {
			companies, err = sm.CompanyStorage().ListActive()
		}
		if err != nil {
			logger.Error().Err(err).Msg("Company listing failed")
			return textResult(fmt.Sprintf("Listing error: %v", err)), nil
		}

		if limit > 0 && len(companies) > limit {
			companies = companies[:limit]
		}
		return textResult(formatCompanyList(atsFamily, companies)), nil
	}
}

// handleGetCompany implements the get_company tool
func handleGetCompany(sm interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companyID := request.GetString("company_id", "")
		domain := request.GetString("domain", "")
		if companyID == "" && domain == "" {
			return textResult("Error: company_id or domain parameter is required"), nil
		}

		var (
			company *models.Company
			err     error
		)
		if companyID != "" {
			company, err = sm.CompanyStorage().Get(companyID)
		} else {
			company, err = sm.CompanyStorage().GetByDomain(models.NormalizeDomain(domain))
		}
		if err != nil {
			logger.Error().Err(err).Str("company_id", companyID).Str("domain", domain).Msg("Company lookup failed")
			return textResult(fmt.Sprintf("Company not found: %v", err)), nil
		}

		jobs, err := sm.JobStorage().ListActiveByCompany(company.ID)
		if err != nil {
			logger.Error().Err(err).Str("company_id", company.ID).Msg("Job listing failed")
			jobs = nil
		}
		return textResult(formatCompany(company, jobs)), nil
	}
}

// handlePipelineStatus implements the pipeline_status tool
func handlePipelineStatus(sm interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := corpusStatus{}

		var err error
		if status.TotalCompanies, err = sm.CompanyStorage().Count(); err != nil {
			logger.Error().Err(err).Msg("Status query failed")
			return textResult(fmt.Sprintf("Status error: %v", err)), nil
		}
		status.ActiveCompanies, _ = sm.CompanyStorage().CountActive()
		status.CompaniesByATS, _ = sm.CompanyStorage().CountByATSFamily()
		status.TotalJobs, _ = sm.JobStorage().Count()
		status.ActiveJobs, _ = sm.JobStorage().CountActive()
		status.DescribedJobs, _ = sm.JobStorage().CountDescribed()
		status.EmbeddedJobs, _ = sm.JobStorage().CountEmbedded()
		status.QueueByStatus, _ = sm.QueueStorage().CountByStatus()

		if runs, err := sm.RunStorage().ListPipelineRuns(1); err == nil && len(runs) > 0 {
			status.LatestRun = runs[0]
		}

		return textResult(formatPipelineStatus(status)), nil
	}
}

// companyNames resolves the distinct company names for a result page. Lookup
// failures degrade to an empty name rather than failing the search.
func companyNames(sm interfaces.StorageManager, jobs []*models.Job) map[string]string {
	names := make(map[string]string)
	for _, job := range jobs {
		if _, seen := names[job.CompanyID]; seen {
			continue
		}
		if company, err := sm.CompanyStorage().Get(job.CompanyID); err == nil {
			names[job.CompanyID] = company.Name
		} else {
			names[job.CompanyID] = ""
		}
	}
	return names
}
