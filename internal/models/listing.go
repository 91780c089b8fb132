package models

import "time"

// JobBoardListing records whether a job was found on an external job board.
// Unique on (JobID, Board); re-verification updates the row in place.
type JobBoardListing struct {
	ID                string    `json:"id"`
	JobID             string    `json:"job_id" badgerhold:"index"`
	Board             string    `json:"board"`
	Found             bool      `json:"found"`
	Confidence        float64   `json:"confidence"`
	ListingURL        string    `json:"listing_url,omitempty"`
	SearchQuery       string    `json:"search_query,omitempty"`
	SearchResultCount int       `json:"search_result_count,omitempty"`
	VerifiedAt        time.Time `json:"verified_at"`
}

// BoardStats aggregates verification results for one board. "Unique" counts
// jobs the board search did not find, which is the signal the corpus carries
// postings that never reached the big aggregators.
type BoardStats struct {
	Verified       int        `json:"verified"`
	Found          int        `json:"found"`
	Unique         int        `json:"unique"`
	UniquenessRate float64    `json:"uniqueness_rate"`
	CoverageRate   float64    `json:"coverage_rate"`
	LastVerified   *time.Time `json:"last_verified,omitempty"`
}

// VerifyStats is the admin-facing snapshot of board verification coverage.
type VerifyStats struct {
	TotalJobs  int                   `json:"total_jobs"`
	Boards     map[string]BoardStats `json:"boards"`
	RecentRuns []*VerificationRun    `json:"recent_runs,omitempty"`
}
