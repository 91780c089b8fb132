package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// EmbedderService writes semantic vectors onto jobs for similarity search.
// Long descriptions are embedded in overlapping chunks whose vectors are
// mean-pooled, so nothing is truncated away.
type EmbedderService interface {
	// EmbedText produces one vector for arbitrary text, chunking and pooling
	// when the text exceeds the chunk size. Search uses this for queries.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedJob computes and sets the embedding on the job without persisting
	// it.
	EmbedJob(ctx context.Context, job *models.Job) error

	// EmbedBacklog drains active described jobs without embeddings in batches
	// until none remain, the context is cancelled, or a batch makes no
	// progress. batchSize <= 0 uses the configured default.
	EmbedBacklog(ctx context.Context, batchSize int) (*models.EmbedSummary, error)

	// Dimension returns the vector length this service produces.
	Dimension() int
}
