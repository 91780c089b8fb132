package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// ExtractInput carries one fetched page through extraction.
type ExtractInput struct {
	Company   *models.Company
	Content   []byte
	SourceURL string
	Rendered  bool
}

// ExtractorService turns a fetched careers page or ATS API response into
// structured jobs. Implementations dispatch on the company's ATS family and
// fall back from structured JSON to HTML selectors to LLM extraction.
type ExtractorService interface {
	Extract(ctx context.Context, in *ExtractInput) ([]*models.ExtractedJob, error)
}
