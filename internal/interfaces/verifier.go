package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// VerifierService checks whether stored jobs also appear on external job
// boards. Each check writes a confidence-scored JobBoardListing row keyed by
// (job, board); re-verification updates the row in place.
type VerifierService interface {
	// VerifyJob checks one job against the given boards (nil means all
	// supported boards) and returns found-status per board.
	VerifyJob(ctx context.Context, jobID string, boards []string) (map[string]bool, error)

	// VerifyBatch sweeps active jobs that have never been checked on the
	// board, or whose last check has aged out, under a recorded
	// VerificationRun. limit caps the job count (0 uses the default).
	VerifyBatch(ctx context.Context, board string, limit int) (*models.VerificationRun, error)

	// Stats reports per-board coverage and uniqueness over active jobs.
	// board narrows the report; empty means all boards.
	Stats(board string) (*models.VerifyStats, error)
}
