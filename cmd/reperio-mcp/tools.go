package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchJobsTool returns the search_jobs tool definition
func createSearchJobsTool() mcp.Tool {
	return mcp.NewTool("search_jobs",
		mcp.WithDescription("Search active job listings by keyword with optional facet filters"),
		mcp.WithString("query",
			mcp.Description("Keyword matched against title and description (case-insensitive substring)"),
		),
		mcp.WithString("role_family",
			mcp.Description("Filter by role family: software_engineering, data, product, design, ..."),
		),
		mcp.WithString("location_type",
			mcp.Description("Filter by location type: remote, hybrid, onsite"),
		),
		mcp.WithString("company_id",
			mcp.Description("Restrict to a single company's listings"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 20, max: 100)"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Retrieve a single job listing by ID, including its full description"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID"),
		),
	)
}

// createListCompaniesTool returns the list_companies tool definition
func createListCompaniesTool() mcp.Tool {
	return mcp.NewTool("list_companies",
		mcp.WithDescription("List tracked companies, optionally filtered by ATS family"),
		mcp.WithString("ats_family",
			mcp.Description("Filter: greenhouse, lever, workday, ashby, smartrecruiters, custom, ..."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 50)"),
		),
	)
}

// createGetCompanyTool returns the get_company tool definition
func createGetCompanyTool() mcp.Tool {
	return mcp.NewTool("get_company",
		mcp.WithDescription("Retrieve a company by ID or domain, with its active job listings"),
		mcp.WithString("company_id",
			mcp.Description("Company ID"),
		),
		mcp.WithString("domain",
			mcp.Description("Company domain, e.g. acme.com (used when company_id is absent)"),
		),
	)
}

// createPipelineStatusTool returns the pipeline_status tool definition
func createPipelineStatusTool() mcp.Tool {
	return mcp.NewTool("pipeline_status",
		mcp.WithDescription("Corpus health summary: company and job counts, discovery queue depth, latest pipeline run"),
	)
}
