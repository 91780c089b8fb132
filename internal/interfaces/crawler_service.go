package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// CrawlerService crawls company careers pages and ATS APIs into snapshots,
// extracted postings and normalized jobs.
type CrawlerService interface {
	// CrawlCompany runs the full sequence for one company: detect the ATS
	// when unknown, fetch the listing, compare against the latest snapshot,
	// then extract and normalize. Failures are reported through the result's
	// outcome and reason code rather than an error so bulk callers can keep
	// going.
	CrawlCompany(ctx context.Context, companyID string) *models.CrawlResult

	// CrawlCompanies crawls the given companies with bounded concurrency.
	// A concurrency of 0 uses the configured default.
	CrawlCompanies(ctx context.Context, companyIDs []string, concurrency int) *models.CrawlSummary

	// CrawlByFamily crawls active companies of one ATS family, highest crawl
	// priority first.
	CrawlByFamily(ctx context.Context, family string, limit, concurrency int) (*models.CrawlSummary, error)
}
