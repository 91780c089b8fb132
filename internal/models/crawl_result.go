package models

// Crawl outcomes.
type CrawlOutcome string

const (
	CrawlOutcomeSuccess   CrawlOutcome = "success"
	CrawlOutcomeUnchanged CrawlOutcome = "unchanged"
	CrawlOutcomeFailed    CrawlOutcome = "failed"
	CrawlOutcomeSkipped   CrawlOutcome = "skipped"
)

// Failure reason codes carried into run logs.
const (
	CrawlReasonNoCareersURL               = "no_careers_url"
	CrawlReasonFetchFailed                = "fetch_failed"
	CrawlReasonFetchFailedAfterRediscover = "fetch_failed_after_rediscovery"
	CrawlReasonNotFound                   = "not_found"
	CrawlReasonException                  = "exception"
)

// CrawlResult summarizes one company crawl.
type CrawlResult struct {
	CompanyID    string       `json:"company_id"`
	CompanyName  string       `json:"company_name,omitempty"`
	Outcome      CrawlOutcome `json:"outcome"`
	Reason       string       `json:"reason,omitempty"`
	JobsFound    int          `json:"jobs_found"`
	JobsNew      int          `json:"jobs_new"`
	JobsUpdated  int          `json:"jobs_updated"`
	SnapshotID   string       `json:"snapshot_id,omitempty"`
	Rediscovered bool         `json:"rediscovered,omitempty"`
}

// CrawlSummary aggregates outcomes across a bulk crawl.
type CrawlSummary struct {
	Success   int `json:"success"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	JobsFound int `json:"jobs_found"`
}

// Add folds one crawl result into the summary.
func (s *CrawlSummary) Add(r *CrawlResult) {
	switch r.Outcome {
	case CrawlOutcomeSuccess:
		s.Success++
	case CrawlOutcomeUnchanged:
		s.Unchanged++
	case CrawlOutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.JobsFound += r.JobsFound
}

// Merge folds another summary into s.
func (s *CrawlSummary) Merge(o *CrawlSummary) {
	s.Success += o.Success
	s.Unchanged += o.Unchanged
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.JobsFound += o.JobsFound
}
