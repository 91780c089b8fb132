package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// EnricherService backfills full descriptions and accurate posted dates onto
// jobs whose listing row carried neither. A posting that has vanished
// upstream is delisted, never reported as an error.
type EnricherService interface {
	// EnrichJob fetches detail for one job and persists the result.
	EnrichJob(ctx context.Context, job *models.Job, company *models.Company) models.EnrichOutcome

	// EnrichBacklog drains the enrichment backlog for the given ATS families
	// in bounded-concurrency batches until no eligible jobs remain, the limit
	// is reached, or the context is cancelled. Empty families means the
	// configured default set; limit <= 0 drains fully.
	EnrichBacklog(ctx context.Context, families []string, limit int) (*models.EnrichSummary, error)
}
