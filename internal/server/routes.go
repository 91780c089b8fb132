package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - run log streaming and event broadcast
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - reads
	mux.HandleFunc("/api/companies", s.app.CompanyHandler.ListCompaniesHandler)
	mux.HandleFunc("/api/companies/", s.app.CompanyHandler.GetCompanyHandler)
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.GetJobHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/logs/recent", s.app.WSHandler.GetRecentLogsHandler)

	// API routes - pipeline control
	mux.HandleFunc("/api/admin/pipeline/run", s.app.PipelineHandler.RunPipelineHandler)
	mux.HandleFunc("/api/admin/pipeline/", s.app.PipelineHandler.RunStageHandler) // /{stage}/run
	mux.HandleFunc("/api/admin/operations", s.app.PipelineHandler.OperationsHandler)
	mux.HandleFunc("/api/admin/metrics", s.app.StatusHandler.MetricsHandler)
	mux.HandleFunc("/api/admin/runs", s.app.PipelineHandler.ListRunsHandler)
	mux.HandleFunc("/api/admin/runs/", s.handleRunRoutes) // /{id} and /{id}/cancel

	// API routes - discovery
	mux.HandleFunc("/api/admin/discovery/run", s.app.DiscoveryHandler.RunDiscoveryHandler)
	mux.HandleFunc("/api/admin/discovery/stats", s.app.DiscoveryHandler.StatsHandler)
	mux.HandleFunc("/api/admin/discovery/queue", s.app.DiscoveryHandler.ListQueueHandler)
	mux.HandleFunc("/api/admin/discovery/queue/process", s.app.DiscoveryHandler.ProcessQueueHandler)
	mux.HandleFunc("/api/admin/discovery/queue/", s.app.DiscoveryHandler.RetryQueueItemHandler) // /{id}/retry

	// API routes - company admin
	mux.HandleFunc("/api/admin/companies/discover", s.app.DiscoveryHandler.DiscoverCompanyHandler)
	mux.HandleFunc("/api/admin/companies/", s.handleCompanyActionRoutes) // /{id}/crawl, /{id}/maintain

	// API routes - verification
	mux.HandleFunc("/api/admin/verify/run", s.app.VerifyHandler.RunVerifyHandler)
	mux.HandleFunc("/api/admin/verify/stats", s.app.VerifyHandler.VerifyStatsHandler)
	mux.HandleFunc("/api/admin/jobs/", s.app.VerifyHandler.VerifyJobHandler) // /{id}/verify

	// API routes - scheduler
	mux.HandleFunc("/api/admin/scheduler/jobs", s.app.SchedulerHandler.ListJobsHandler)
	mux.HandleFunc("/api/admin/scheduler/jobs/", s.app.SchedulerHandler.JobActionHandler) // /{name}/{action}

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}

// handleRunRoutes dispatches /api/admin/runs/{id} and /api/admin/runs/{id}/cancel.
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/cancel") {
		s.app.PipelineHandler.CancelRunHandler(w, r)
		return
	}
	s.app.PipelineHandler.GetRunHandler(w, r)
}

// handleCompanyActionRoutes dispatches /api/admin/companies/{id}/crawl and
// /api/admin/companies/{id}/maintain.
func (s *Server) handleCompanyActionRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/crawl"):
		s.app.CompanyHandler.CrawlCompanyHandler(w, r)
	case strings.HasSuffix(r.URL.Path, "/maintain"):
		s.app.CompanyHandler.MaintainCompanyHandler(w, r)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
