package models

import (
	"net/url"
	"strings"
	"time"
)

// Hosted ATS domains. A DiscoveredCompany whose only URL lives on one of
// these must not derive its dedup domain from it, otherwise every company on
// the same vendor would collide.
var hostedATSDomains = []string{
	"greenhouse.io",
	"lever.co",
	"ashbyhq.com",
	"workday.com",
	"myworkdayjobs.com",
}

// DiscoveredCompany is a partially populated company emitted by a discovery
// source. Only Name and Source are guaranteed; everything else is best-effort.
type DiscoveredCompany struct {
	Name          string    `json:"name"`
	Domain        string    `json:"domain,omitempty"`
	CareersURL    string    `json:"careers_url,omitempty"`
	WebsiteURL    string    `json:"website_url,omitempty"`
	Source        string    `json:"source"`
	SourceURL     string    `json:"source_url,omitempty"`
	Location      string    `json:"location,omitempty"`
	Country       string    `json:"country,omitempty"`
	Description   string    `json:"description,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	EmployeeCount string    `json:"employee_count,omitempty"`
	FundingStage  string    `json:"funding_stage,omitempty"`
	ATSFamily     string    `json:"ats_family,omitempty"`
	ATSIdentifier string    `json:"ats_identifier,omitempty"`
	DiscoveredAt  time.Time `json:"discovered_at"`
}

// Normalize derives a missing Domain from WebsiteURL, falling back to
// CareersURL when the careers page is self-hosted, and canonicalizes it.
func (d *DiscoveredCompany) Normalize() {
	if d.Domain == "" && d.WebsiteURL != "" {
		d.Domain = hostFromURL(d.WebsiteURL)
	}
	if d.Domain == "" && d.CareersURL != "" {
		host := hostFromURL(d.CareersURL)
		if host != "" && !isHostedATSDomain(host) {
			d.Domain = host
		}
	}
	d.Domain = NormalizeDomain(d.Domain)
	if d.DiscoveredAt.IsZero() {
		d.DiscoveredAt = time.Now().UTC()
	}
}

// Complete reports whether the record can be materialized as a Company row
// directly, without queueing for careers-page discovery.
func (d *DiscoveredCompany) Complete() bool {
	return d.Domain != "" && d.CareersURL != ""
}

func hostFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func isHostedATSDomain(host string) bool {
	for _, d := range hostedATSDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// QueueStatus is the lifecycle of a discovery queue item.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusSkipped    QueueStatus = "skipped"
	QueueStatusReview     QueueStatus = "review"
)

// DiscoveryQueueItem holds a discovered company that lacked enough data for a
// direct Company insert. Queue processing tries to find the careers page and
// ATS, promoting to Company on success.
type DiscoveryQueueItem struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Domain        string      `json:"domain,omitempty" badgerhold:"index"`
	CareersURL    string      `json:"careers_url,omitempty"`
	WebsiteURL    string      `json:"website_url,omitempty"`
	Source        string      `json:"source"`
	SourceURL     string      `json:"source_url,omitempty"`
	Location      string      `json:"location,omitempty"`
	Country       string      `json:"country,omitempty"`
	Description   string      `json:"description,omitempty"`
	Industry      string      `json:"industry,omitempty"`
	EmployeeCount string      `json:"employee_count,omitempty"`
	FundingStage  string      `json:"funding_stage,omitempty"`
	ATSFamily     string      `json:"ats_family,omitempty"`
	ATSIdentifier string      `json:"ats_identifier,omitempty"`
	Status        QueueStatus `json:"status" badgerhold:"index"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	RetryCount    int         `json:"retry_count"`
	CreatedAt     time.Time   `json:"created_at"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty"`
	CompanyID     string      `json:"company_id,omitempty"` // back-pointer once promoted
}

// QueueProcessResult summarizes one ProcessQueue pass.
type QueueProcessResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Review    int `json:"review"`
	Failed    int `json:"failed"`
}

// DiscoveryStats is the admin-facing snapshot of the discovery subsystem.
type DiscoveryStats struct {
	Queue          map[QueueStatus]int `json:"queue"`
	RecentRuns     []*DiscoveryRun     `json:"recent_runs"`
	RunningCount   int                 `json:"running_count"`
	TotalCompanies int                 `json:"total_companies"`
	ReadyForCrawl  int                 `json:"ready_for_crawl"`
}

// NewQueueItem copies a DiscoveredCompany into a pending queue row.
func NewQueueItem(id string, d *DiscoveredCompany) *DiscoveryQueueItem {
	return &DiscoveryQueueItem{
		ID:            id,
		Name:          d.Name,
		Domain:        d.Domain,
		CareersURL:    d.CareersURL,
		WebsiteURL:    d.WebsiteURL,
		Source:        d.Source,
		SourceURL:     d.SourceURL,
		Location:      d.Location,
		Country:       d.Country,
		Description:   d.Description,
		Industry:      d.Industry,
		EmployeeCount: d.EmployeeCount,
		FundingStage:  d.FundingStage,
		ATSFamily:     d.ATSFamily,
		ATSIdentifier: d.ATSIdentifier,
		Status:        QueueStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}
