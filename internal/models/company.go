package models

import (
	"strings"
	"time"
)

// ATS family values with special meaning. An empty ATSFamily means detection
// has not succeeded yet; "custom" means detection gave up and the company is
// routed to the JS-rendering path. The two states are deliberately distinct.
const (
	ATSFamilyCustom        = "custom"
	ATSFamilyUsesParentATS = "uses_parent_ats"
)

// Default crawl priorities. Companies created by discovery start lower than
// manually curated ones so the curated set is crawled first.
const (
	CrawlPriorityDefault    = 50
	CrawlPriorityDiscovered = 30
)

// Company is a hiring organization whose ATS is crawled for postings.
// Domain is the dedup key: lowercase, no leading "www.". It is deliberately
// NOT a unique index: hosted-board discoveries can arrive with no company
// site at all, and several domain-less rows must coexist. Uniqueness for
// non-empty domains is enforced by the storage layer's Create pre-check and
// the discovery dedup claim.
type Company struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Domain     string `json:"domain" badgerhold:"index"`
	CareersURL string `json:"careers_url,omitempty"`
	WebsiteURL string `json:"website_url,omitempty"`

	// ATS identification. ATSIdentifier is the per-tenant slug/board token
	// that keys the vendor API. Both empty until detection succeeds.
	ATSFamily     string `json:"ats_family,omitempty" badgerhold:"index"`
	ATSIdentifier string `json:"ats_identifier,omitempty"`

	// ParentCompanyID is set when this company's careers page redirects to
	// another company's ATS (subsidiary case). The parent row may be a stub.
	ParentCompanyID string `json:"parent_company_id,omitempty"`

	DiscoverySource string `json:"discovery_source,omitempty"`
	Country         string `json:"country,omitempty"`
	Location        string `json:"location,omitempty"`
	Description     string `json:"description,omitempty"`
	Industry        string `json:"industry,omitempty"`
	EmployeeCount   string `json:"employee_count,omitempty"`
	FundingStage    string `json:"funding_stage,omitempty"`

	CrawlPriority int  `json:"crawl_priority"`
	IsActive      bool `json:"is_active" badgerhold:"index"`

	LastCrawledAt         *time.Time `json:"last_crawled_at,omitempty"`
	LastMaintenanceAt     *time.Time `json:"last_maintenance_at,omitempty"`
	LastCrawledForNetwork *time.Time `json:"last_crawled_for_network,omitempty"`

	// Detection bookkeeping. Once attempts reach the configured ceiling the
	// company is marked ATSFamilyCustom so it stops consuming detector work.
	ATSDetectionAttempts int        `json:"ats_detection_attempts"`
	ATSDetectionLastAt   *time.Time `json:"ats_detection_last_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasATS reports whether the company has a detected, API-addressable family.
func (c *Company) HasATS() bool {
	return c.ATSFamily != "" && c.ATSFamily != ATSFamilyCustom && c.ATSFamily != ATSFamilyUsesParentATS
}

// NormalizeDomain lowercases a domain and strips a leading "www." so that
// dedup comparisons are stable across sources.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	return d
}
