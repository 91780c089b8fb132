package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/reperio/internal/models"
)

// ErrOperationRunning is returned when a requested stage or the full pipeline
// is already executing. Handlers map it to 409 Conflict.
var ErrOperationRunning = errors.New("operation already running")

// PipelineService chains discovery, crawl, enrichment, and embeddings into
// one corpus refresh and runs individual stages on demand. Every execution is
// recorded as a PipelineRun row with streaming logs; overlapping executions
// of the same operation are refused rather than queued.
type PipelineService interface {
	// RunFullPipeline executes the non-skipped stages in order and blocks
	// until they finish. A stage failure is logged on the umbrella run and the
	// remaining stages still execute; the returned run reflects the final
	// state.
	RunFullPipeline(ctx context.Context, opts models.PipelineOptions) (*models.PipelineRun, error)

	// RunStage executes one stage by name (StageDiscovery, StageCrawl,
	// StageEnrichment, StageEmbeddings) and blocks until it finishes. family
	// narrows crawl or enrichment to one ATS family. limit caps the stage's
	// work with 0 meaning the stage default; for embeddings it overrides the
	// batch size instead.
	RunStage(ctx context.Context, stage, family string, limit int) (*models.PipelineRun, error)

	// CancelRun requests cooperative cancellation of any run type by id. The
	// owning loop notices on its next checkpoint. Returns ErrRunNotFound for
	// unknown ids and ErrRunNotRunning when the run already finished.
	CancelRun(runID string) error

	// Running lists in-flight exclusive operations.
	Running() []models.OperationStatus

	// Stats snapshots corpus health: company and job counts plus the
	// discovery queue by status.
	Stats() (*models.PipelineStats, error)
}

// Cancellation errors distinguish "no such run" from "nothing to cancel" so
// the admin API can answer 404 versus 400.
var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunNotRunning = errors.New("run is not running")
)
