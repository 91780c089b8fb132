// Package embeddings writes semantic vectors onto jobs so search can rank by
// meaning instead of keywords. The embedded text concatenates the title with
// its seniority, the full description, and the classified role metadata. Text
// longer than the chunk size is split into overlapping chunks at word
// boundaries; each chunk is embedded separately and the vectors are
// mean-pooled, so long descriptions contribute end to end instead of being
// truncated.
package embeddings

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// boundaryWindow is how far back from a chunk's hard limit the splitter looks
// for a space to break on.
const boundaryWindow = 200

// Service computes job embeddings. Safe for concurrent use.
type Service struct {
	jobs       interfaces.JobStorage
	llm        interfaces.LLMService
	chunkSize  int
	overlap    int
	batchSize  int
	maxBatches int
	logger     arbor.ILogger
}

func NewService(jobs interfaces.JobStorage, llm interfaces.LLMService, cfg common.EmbeddingsConfig, logger arbor.ILogger) *Service {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 6000
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	maxBatches := cfg.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 500
	}
	return &Service{
		jobs:       jobs,
		llm:        llm,
		chunkSize:  chunkSize,
		overlap:    overlap,
		batchSize:  batchSize,
		maxBatches: maxBatches,
		logger:     logger,
	}
}

// Dimension returns the vector length the backing model produces.
func (s *Service) Dimension() int {
	return s.llm.EmbeddingDimension()
}

// EmbedText produces one vector for arbitrary text. Text within the chunk
// size goes to the model directly; longer text is chunked and the chunk
// vectors are averaged. A chunk that fails to embed is skipped so one bad
// call does not lose the whole document, but if every chunk fails the error
// surfaces.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	chunks := chunkText(text, s.chunkSize, s.overlap)
	if len(chunks) == 1 {
		return s.llm.Embed(ctx, chunks[0])
	}

	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := s.llm.Embed(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Debug().Err(err).Int("chunks", len(chunks)).Msg("Chunk embedding failed, skipping chunk")
			continue
		}
		vectors = append(vectors, vector)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("all %d chunks failed to embed", len(chunks))
	}
	return meanPool(vectors), nil
}

// EmbedJob computes and sets the embedding on the job without persisting it.
func (s *Service) EmbedJob(ctx context.Context, job *models.Job) error {
	vector, err := s.EmbedText(ctx, embeddingText(job))
	if err != nil {
		return fmt.Errorf("failed to embed job %s: %w", job.ID, err)
	}
	job.Embedding = vector
	return nil
}

// EmbedBacklog drains active described jobs without embeddings in batches.
// Jobs that fail keep their nil embedding and stay eligible for the next run,
// so a batch that makes no progress at all means everything left is failing
// and the loop stops rather than spinning on the same rows.
func (s *Service) EmbedBacklog(ctx context.Context, batchSize int) (*models.EmbedSummary, error) {
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	summary := &models.EmbedSummary{}
	for summary.Batches < s.maxBatches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batch, err := s.jobs.ListNeedingEmbedding(batchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}

		progressed := 0
		for _, job := range batch {
			if ctx.Err() != nil {
				break
			}
			if s.embedAndSave(ctx, job, summary) {
				progressed++
			}
		}
		summary.Batches++

		if progressed == 0 {
			s.logger.Warn().
				Int("failed", summary.Failed).
				Msg("Embedding batch made no progress, stopping")
			break
		}
		if summary.Batches%5 == 0 {
			s.logger.Info().
				Int("processed", summary.Processed).
				Int("batches", summary.Batches).
				Msg("Embedding backlog progress")
		}
	}

	if left, err := s.jobs.ListNeedingEmbedding(0); err == nil {
		summary.Remaining = len(left)
	} else {
		s.logger.Warn().Err(err).Msg("Failed to count remaining unembedded jobs")
	}
	s.logger.Info().
		Int("processed", summary.Processed).
		Int("chunked", summary.Chunked).
		Int("failed", summary.Failed).
		Int("remaining", summary.Remaining).
		Msg("Embedding backlog drained")
	return summary, nil
}

func (s *Service) embedAndSave(ctx context.Context, job *models.Job, summary *models.EmbedSummary) bool {
	text := embeddingText(job)
	vector, err := s.EmbedText(ctx, text)
	if err != nil {
		summary.Failed++
		s.logger.Debug().Str("job_id", job.ID).Err(err).Msg("Failed to embed job")
		return false
	}
	job.Embedding = vector
	if err := s.jobs.Update(job); err != nil {
		summary.Failed++
		s.logger.Error().Str("job_id", job.ID).Err(err).Msg("Failed to save job embedding")
		return false
	}
	summary.Processed++
	if len(text) > s.chunkSize {
		summary.Chunked++
	}
	return true
}

// embeddingText assembles what gets embedded for a job: what the role is
// first, then the description, then the classified attributes as labeled
// hints.
func embeddingText(job *models.Job) string {
	parts := make([]string, 0, 6)

	title := strings.TrimSpace(job.Title)
	if job.Seniority != "" {
		title = strings.TrimSpace(capitalize(job.Seniority) + " " + title)
	}
	if title != "" {
		parts = append(parts, title)
	}
	if job.Description != "" {
		parts = append(parts, job.Description)
	}
	if len(job.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(job.Skills, ", "))
	}
	if job.RoleFamily != "" {
		parts = append(parts, "Role: "+job.RoleFamily)
	}
	if job.RoleSpecialization != "" {
		parts = append(parts, "Specialization: "+job.RoleSpecialization)
	}
	if job.LocationType != "" {
		parts = append(parts, "Work type: "+job.LocationType)
	}
	return strings.Join(parts, " ")
}

// chunkText splits text into pieces of at most size bytes, with overlap bytes
// shared between neighbors so sentences straddling a cut appear whole in one
// chunk. Cuts prefer a space within boundaryWindow of the limit and never
// land mid-rune.
func chunkText(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			window := end - boundaryWindow
			if window < start {
				window = start
			}
			if i := strings.LastIndexByte(text[window:end], ' '); i > 0 {
				end = window + i
			}
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}
		next := end - overlap
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			// Overlap would revisit ground already covered; jump ahead
			// instead so the walk always terminates.
			next = end
		}
		start = next
	}
	return chunks
}

// meanPool averages chunk vectors elementwise into one document vector.
func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 1 {
		return vectors[0]
	}
	pooled := make([]float32, len(vectors[0]))
	for _, vector := range vectors {
		for i, v := range vector {
			if i < len(pooled) {
				pooled[i] += v
			}
		}
	}
	n := float32(len(vectors))
	for i := range pooled {
		pooled[i] /= n
	}
	return pooled
}

func capitalize(s string) string {
	r, width := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[width:]
}

var _ interfaces.EmbedderService = (*Service)(nil)
