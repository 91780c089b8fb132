package models

// Maintenance outcomes.
type MaintainOutcome string

const (
	MaintainOutcomeSuccess MaintainOutcome = "success"
	MaintainOutcomeUnknown MaintainOutcome = "unknown" // extraction came back empty; nothing was diffed
	MaintainOutcomeFailed  MaintainOutcome = "failed"
	MaintainOutcomeSkipped MaintainOutcome = "skipped"
)

// Maintenance failure reason codes carried into run logs.
const (
	MaintainReasonNotFound      = "not_found"
	MaintainReasonNoCareersURL  = "no_careers_url"
	MaintainReasonFetchFailed   = "fetch_failed"
	MaintainReasonExtractFailed = "extract_failed"
	MaintainReasonException     = "exception"
)

// MaintainResult summarizes one company maintenance pass.
type MaintainResult struct {
	CompanyID   string          `json:"company_id"`
	CompanyName string          `json:"company_name,omitempty"`
	Outcome     MaintainOutcome `json:"outcome"`
	Reason      string          `json:"reason,omitempty"`
	Verified    int             `json:"verified"`
	New         int             `json:"new"`
	Delisted    int             `json:"delisted"`
}
