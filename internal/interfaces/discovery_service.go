package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// DiscoveryService finds companies that hire and feeds them into the company
// table. Sources emit partial candidates; complete ones are inserted
// directly, incomplete ones land on a review queue that a second pass
// enriches with careers-page and ATS detection before promoting.
type DiscoveryService interface {
	// RunDiscovery fires the named sources concurrently, each under its own
	// recorded DiscoveryRun, and blocks until all of them finish. An empty
	// sources slice runs the configured set. Callers wanting fire-and-forget
	// wrap it in a goroutine and follow progress through the run rows.
	RunDiscovery(ctx context.Context, sources []string) ([]*models.DiscoveryRun, error)

	// ProcessQueue drains up to limit pending queue items (0 uses the
	// default batch), resolving careers URLs and ATS boards before creating
	// or updating companies. Items that cannot be resolved move to review;
	// transient failures are retried and eventually marked failed.
	ProcessQueue(ctx context.Context, limit int) (*models.QueueProcessResult, error)

	// DiscoverCompany resolves a single operator-supplied company: careers
	// page lookup, ATS detection, then create-or-merge against the company
	// table. At least one of domain or websiteURL is required.
	DiscoverCompany(ctx context.Context, name, domain, websiteURL string) (*models.Company, error)

	// Stats reports queue depth by status, recent runs and company totals.
	Stats() (*models.DiscoveryStats, error)
}
