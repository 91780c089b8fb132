package models

import "time"

// CrawlSnapshot is an append-only record of a fetched careers page or ATS API
// response. A new row is written only when the body hash differs from the
// company's latest snapshot; unchanged crawls just bump Company.LastCrawledAt.
type CrawlSnapshot struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id" badgerhold:"index"`
	URL        string    `json:"url"`
	HTMLHash   string    `json:"html_hash"` // SHA-256 hex of the raw body
	HTML       string    `json:"html_content,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Rendered   bool      `json:"rendered"` // true when fetched via the headless browser
	CrawledAt  time.Time `json:"crawled_at"`
}
