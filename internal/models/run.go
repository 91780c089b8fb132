package models

import "time"

// RunStatus is the lifecycle of any run record. Cancellation is cooperative:
// long loops re-read the status and exit cleanly when they see cancelled.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunLogEntry is one line of a run's streaming log. Entries are appended and
// persisted immediately so an operator UI can tail progress. RunID carries
// the run id truncated to 8 chars for display.
type RunLogEntry struct {
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	RunID     string                 `json:"run_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// PipelineRun records one pipeline stage execution (or a full-pipeline
// cascade). Stage is one of the operation stages: discovery, crawl,
// enrichment, embeddings, maintenance, full_pipeline.
type PipelineRun struct {
	ID          string        `json:"id"`
	Stage       string        `json:"stage" badgerhold:"index"`
	Status      RunStatus     `json:"status" badgerhold:"index"`
	CurrentStep string        `json:"current_step,omitempty"`
	Processed   int           `json:"processed"`
	Failed      int           `json:"failed"`
	Cascade     bool          `json:"cascade"` // true when launched inside full_pipeline
	Logs        []RunLogEntry `json:"logs,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// DiscoveryRun records one discovery source execution with live counters.
type DiscoveryRun struct {
	ID              string        `json:"id"`
	Source          string        `json:"source" badgerhold:"index"`
	Status          RunStatus     `json:"status" badgerhold:"index"`
	CompaniesFound  int           `json:"companies_found"`
	CompaniesNew    int           `json:"companies_new"`
	CompaniesQueued int           `json:"companies_queued"`
	Duplicates      int           `json:"duplicates"`
	NonUS           int           `json:"non_us"`
	Updated         int           `json:"updated"`
	Errors          int           `json:"errors"`
	CurrentStep     string        `json:"current_step,omitempty"`
	ProgressCount   int           `json:"progress_count"`
	ProgressTotal   int           `json:"progress_total,omitempty"`
	Logs            []RunLogEntry `json:"logs,omitempty"`
	Error           string        `json:"error,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// Maintenance run types.
const (
	MaintenanceRunFull      = "full"
	MaintenanceRunCompany   = "company"
	MaintenanceRunATSFamily = "ats_family"
)

// MaintenanceRun records one maintenance sweep.
type MaintenanceRun struct {
	ID               string        `json:"id"`
	RunType          string        `json:"run_type"`
	ATSFamily        string        `json:"ats_family,omitempty"`
	CompanyID        string        `json:"company_id,omitempty"`
	Status           RunStatus     `json:"status" badgerhold:"index"`
	CompaniesChecked int           `json:"companies_checked"`
	JobsVerified     int           `json:"jobs_verified"`
	JobsNew          int           `json:"jobs_new"`
	JobsDelisted     int           `json:"jobs_delisted"`
	JobsUnchanged    int           `json:"jobs_unchanged"`
	Errors           int           `json:"errors"`
	Logs             []RunLogEntry `json:"logs,omitempty"`
	Error            string        `json:"error,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// VerificationRun records one board-presence verification sweep.
type VerificationRun struct {
	ID            string        `json:"id"`
	Status        RunStatus     `json:"status" badgerhold:"index"`
	Boards        []string      `json:"boards,omitempty"`
	JobsChecked   int           `json:"jobs_checked"`
	ListingsFound int           `json:"listings_found"`
	Errors        int           `json:"errors"`
	Logs          []RunLogEntry `json:"logs,omitempty"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}
