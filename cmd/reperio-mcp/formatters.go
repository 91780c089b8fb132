package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/reperio/internal/models"
)

// corpusStatus is the snapshot assembled for the pipeline_status tool.
type corpusStatus struct {
	TotalCompanies  int
	ActiveCompanies int
	CompaniesByATS  map[string]int
	TotalJobs       int
	ActiveJobs      int
	DescribedJobs   int
	EmbeddedJobs    int
	QueueByStatus   map[models.QueueStatus]int
	LatestRun       *models.PipelineRun
}

// formatJobResults formats a search result page as markdown
func formatJobResults(query string, jobs []*models.Job, companies map[string]string) string {
	var sb strings.Builder
	if query != "" {
		sb.WriteString(fmt.Sprintf("## Jobs matching \"%s\" (%d results)\n\n", query, len(jobs)))
	} else {
		sb.WriteString(fmt.Sprintf("## Jobs (%d results)\n\n", len(jobs)))
	}

	if len(jobs) == 0 {
		sb.WriteString("No matching jobs found.\n")
		return sb.String()
	}

	for i, job := range jobs {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, job.Title))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", job.ID))
		if name := companies[job.CompanyID]; name != "" {
			sb.WriteString(fmt.Sprintf("**Company:** %s\n", name))
		}
		if job.RoleFamily != "" {
			sb.WriteString(fmt.Sprintf("**Role:** %s", job.RoleFamily))
			if job.Seniority != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", job.Seniority))
			}
			sb.WriteString("\n")
		}
		writeLocationLine(&sb, job)
		sb.WriteString(fmt.Sprintf("**URL:** %s\n\n", job.SourceURL))
	}

	return sb.String()
}

// formatJob formats a single job with its full description as markdown
func formatJob(job *models.Job, company *models.Company) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", job.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", job.ID))
	if company != nil {
		sb.WriteString(fmt.Sprintf("**Company:** %s (%s)\n", company.Name, company.Domain))
	}
	if job.RoleFamily != "" {
		sb.WriteString(fmt.Sprintf("**Role:** %s", job.RoleFamily))
		if job.RoleSpecialization != "" {
			sb.WriteString(" / " + job.RoleSpecialization)
		}
		if job.Seniority != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", job.Seniority))
		}
		sb.WriteString("\n")
	}
	writeLocationLine(&sb, job)
	if job.MinSalary != nil && job.MaxSalary != nil {
		sb.WriteString(fmt.Sprintf("**Salary:** %d - %d\n", *job.MinSalary, *job.MaxSalary))
	}
	if len(job.Skills) > 0 {
		sb.WriteString(fmt.Sprintf("**Skills:** %s\n", strings.Join(job.Skills, ", ")))
	}
	if job.PostedAt != nil {
		sb.WriteString(fmt.Sprintf("**Posted:** %s\n", job.PostedAt.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("**URL:** %s\n", job.SourceURL))
	if !job.IsActive {
		sb.WriteString(fmt.Sprintf("**Delisted:** %s\n", job.DelistReason))
	}
	sb.WriteString("\n")

	if job.DescriptionMarkdown != "" {
		sb.WriteString("## Description\n\n")
		sb.WriteString(job.DescriptionMarkdown)
		sb.WriteString("\n")
	} else if job.Description != "" {
		sb.WriteString("## Description\n\n")
		sb.WriteString(job.Description)
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatCompanyList formats a company listing as markdown
func formatCompanyList(atsFamily string, companies []*models.Company) string {
	var sb strings.Builder
	if atsFamily != "" {
		sb.WriteString(fmt.Sprintf("## Companies on %s (%d)\n\n", atsFamily, len(companies)))
	} else {
		sb.WriteString(fmt.Sprintf("## Companies (%d)\n\n", len(companies)))
	}

	if len(companies) == 0 {
		sb.WriteString("No companies found.\n")
		return sb.String()
	}

	for i, company := range companies {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, company.Name, company.Domain))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", company.ID))
		if company.ATSFamily != "" {
			sb.WriteString(fmt.Sprintf("   ATS: %s", company.ATSFamily))
			if company.ATSIdentifier != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", company.ATSIdentifier))
			}
			sb.WriteString("\n")
		}
		if company.LastCrawledAt != nil {
			sb.WriteString(fmt.Sprintf("   Last crawled: %s\n", company.LastCrawledAt.Format(time.RFC3339)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatCompany formats a company with its active listings as markdown
func formatCompany(company *models.Company, jobs []*models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", company.Name))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", company.ID))
	sb.WriteString(fmt.Sprintf("**Domain:** %s\n", company.Domain))
	if company.CareersURL != "" {
		sb.WriteString(fmt.Sprintf("**Careers:** %s\n", company.CareersURL))
	}
	if company.ATSFamily != "" {
		sb.WriteString(fmt.Sprintf("**ATS:** %s", company.ATSFamily))
		if company.ATSIdentifier != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", company.ATSIdentifier))
		}
		sb.WriteString("\n")
	}
	if company.Industry != "" {
		sb.WriteString(fmt.Sprintf("**Industry:** %s\n", company.Industry))
	}
	if company.Description != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", company.Description))
	}

	sb.WriteString(fmt.Sprintf("\n## Active Jobs (%d)\n\n", len(jobs)))
	for i, job := range jobs {
		sb.WriteString(fmt.Sprintf("%d. **%s** — %s\n", i+1, job.Title, job.SourceURL))
	}
	if len(jobs) == 0 {
		sb.WriteString("No active listings.\n")
	}

	return sb.String()
}

// formatPipelineStatus formats the corpus snapshot as markdown
func formatPipelineStatus(status corpusStatus) string {
	var sb strings.Builder
	sb.WriteString("## Pipeline Status\n\n")
	sb.WriteString(fmt.Sprintf("**Companies:** %d total, %d active\n", status.TotalCompanies, status.ActiveCompanies))
	sb.WriteString(fmt.Sprintf("**Jobs:** %d total, %d active, %d described, %d embedded\n\n",
		status.TotalJobs, status.ActiveJobs, status.DescribedJobs, status.EmbeddedJobs))

	if len(status.CompaniesByATS) > 0 {
		sb.WriteString("### Companies by ATS\n\n")
		families := make([]string, 0, len(status.CompaniesByATS))
		for family := range status.CompaniesByATS {
			families = append(families, family)
		}
		sort.Strings(families)
		for _, family := range families {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", family, status.CompaniesByATS[family]))
		}
		sb.WriteString("\n")
	}

	if len(status.QueueByStatus) > 0 {
		sb.WriteString("### Discovery Queue\n\n")
		statuses := make([]string, 0, len(status.QueueByStatus))
		for queueStatus := range status.QueueByStatus {
			statuses = append(statuses, string(queueStatus))
		}
		sort.Strings(statuses)
		for _, queueStatus := range statuses {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", queueStatus, status.QueueByStatus[models.QueueStatus(queueStatus)]))
		}
		sb.WriteString("\n")
	}

	if run := status.LatestRun; run != nil {
		sb.WriteString("### Latest Pipeline Run\n\n")
		sb.WriteString(fmt.Sprintf("- ID: %s\n", run.ID))
		sb.WriteString(fmt.Sprintf("- Status: %s\n", run.Status))
		sb.WriteString(fmt.Sprintf("- Started: %s\n", run.StartedAt.Format(time.RFC3339)))
		if run.CompletedAt != nil {
			sb.WriteString(fmt.Sprintf("- Completed: %s\n", run.CompletedAt.Format(time.RFC3339)))
		}
		if run.Error != "" {
			sb.WriteString(fmt.Sprintf("- Error: %s\n", run.Error))
		}
	}

	return sb.String()
}

// writeLocationLine appends the location facts shared by list and detail views.
func writeLocationLine(sb *strings.Builder, job *models.Job) {
	if job.LocationType == "" && len(job.Locations) == 0 {
		return
	}
	sb.WriteString("**Location:** ")
	if job.LocationType != "" {
		sb.WriteString(job.LocationType)
	}
	if len(job.Locations) > 0 {
		if job.LocationType != "" {
			sb.WriteString(" — ")
		}
		sb.WriteString(strings.Join(job.Locations, ", "))
	}
	sb.WriteString("\n")
}
