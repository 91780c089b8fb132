package embeddings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

// stubLLM returns deterministic vectors and records every text it was asked
// to embed. The first vector element carries the call ordinal, which makes
// mean pooling checkable: pooling ordinals 1..n must average to (n+1)/2.
type stubLLM struct {
	mu      sync.Mutex
	texts   []string
	dim     int
	failAll bool
}

func (l *stubLLM) Embed(_ context.Context, text string) ([]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.texts = append(l.texts, text)
	if l.failAll {
		return nil, errors.New("quota exhausted")
	}
	vector := make([]float32, l.dim)
	vector[0] = float32(len(l.texts))
	return vector, nil
}

func (l *stubLLM) EmbeddingDimension() int { return l.dim }

func (l *stubLLM) Chat(context.Context, []interfaces.Message) (string, error) {
	return "", errors.New("chat not supported")
}

func (l *stubLLM) HealthCheck(context.Context) error   { return nil }
func (l *stubLLM) GetProvider() interfaces.LLMProvider { return interfaces.LLMProviderGemini }
func (l *stubLLM) Close() error                        { return nil }

func (l *stubLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.texts)
}

type harness struct {
	llm  *stubLLM
	jobs interfaces.JobStorage
	svc  *Service
}

func newHarness(t *testing.T, cfg common.EmbeddingsConfig) *harness {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{
		llm:  &stubLLM{dim: 8},
		jobs: badger.NewJobStorage(db, logger),
	}
	h.svc = NewService(h.jobs, h.llm, cfg, logger)
	return h
}

func (h *harness) addJob(t *testing.T, description string) *models.Job {
	t.Helper()
	now := time.Now().UTC()
	saved, err := h.jobs.Upsert(&models.Job{
		ID:          uuid.NewString(),
		CompanyID:   uuid.NewString(),
		SourceURL:   "https://jobs.example/" + uuid.NewString(),
		Title:       "Backend Engineer",
		Description: description,
		RoleFamily:  "software_engineering",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatal(err)
	}
	return saved
}

func TestEmbeddingText(t *testing.T) {
	job := &models.Job{
		Title:              "Platform Engineer",
		Seniority:          "senior",
		Description:        "Build the deploy pipeline.",
		Skills:             []string{"go", "kubernetes"},
		RoleFamily:         "software_engineering",
		RoleSpecialization: "devops_sre",
		LocationType:       "remote",
	}
	want := "Senior Platform Engineer Build the deploy pipeline. " +
		"Skills: go, kubernetes Role: software_engineering " +
		"Specialization: devops_sre Work type: remote"
	if got := embeddingText(job); got != want {
		t.Errorf("embeddingText = %q, want %q", got, want)
	}

	bare := &models.Job{Title: "Data Analyst"}
	if got := embeddingText(bare); got != "Data Analyst" {
		t.Errorf("embeddingText for bare job = %q, want %q", got, "Data Analyst")
	}
}

func TestChunkTextShortTextIsOneChunk(t *testing.T) {
	chunks := chunkText("hello world", 100, 10)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Errorf("Expected single untouched chunk, got %v", chunks)
	}
}

func TestChunkTextSplitsAtWordBoundaries(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma ", 20))
	chunks := chunkText(text, 100, 20)

	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("Chunk %d is %d bytes, want <= 100", i, len(chunk))
		}
		if chunk == "" {
			t.Errorf("Chunk %d is empty", i)
		}
		if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
			t.Errorf("Chunk %d not trimmed: %q", i, chunk)
		}
	}
	if !strings.HasPrefix(chunks[0], "alpha") {
		t.Errorf("First chunk should start at the text start, got %q", chunks[0])
	}
	if !strings.HasSuffix(chunks[len(chunks)-1], "gamma") {
		t.Errorf("Last chunk should reach the text end, got %q", chunks[len(chunks)-1])
	}
}

func TestChunkTextHandlesTextWithoutSpaces(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := chunkText(text, 100, 20)

	if len(chunks) < 3 {
		t.Fatalf("Expected at least 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("Chunk %d is %d bytes, want <= 100", i, len(chunk))
		}
	}
}

func TestChunkTextNeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("é", 100) // 200 bytes, every odd offset is mid-rune
	chunks := chunkText(text, 33, 5)

	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("Chunk %d is not valid UTF-8: %q", i, chunk)
		}
	}
}

func TestEmbedTextSingleChunk(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{ChunkSize: 100, ChunkOverlap: 10})

	vector, err := h.svc.EmbedText(context.Background(), "short text")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if h.llm.calls() != 1 {
		t.Errorf("Expected 1 model call, got %d", h.llm.calls())
	}
	if len(vector) != 8 {
		t.Errorf("Expected 8-dim vector, got %d", len(vector))
	}
}

func TestEmbedTextPoolsChunkVectors(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{ChunkSize: 40, ChunkOverlap: 10})

	text := strings.TrimSpace(strings.Repeat("alpha beta ", 12))
	vector, err := h.svc.EmbedText(context.Background(), text)
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}

	n := h.llm.calls()
	if n < 2 {
		t.Fatalf("Expected multiple chunk calls, got %d", n)
	}
	// The stub returns the call ordinal in element 0, so the pooled value
	// must be the mean of 1..n.
	want := float32(n+1) / 2
	if vector[0] != want {
		t.Errorf("Pooled vector[0] = %v, want %v", vector[0], want)
	}
}

func TestEmbedTextRejectsEmpty(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{})
	if _, err := h.svc.EmbedText(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestEmbedJobSetsVector(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{})

	job := &models.Job{ID: uuid.NewString(), Title: "SRE", Description: "Keep things up."}
	if err := h.svc.EmbedJob(context.Background(), job); err != nil {
		t.Fatalf("EmbedJob failed: %v", err)
	}
	if len(job.Embedding) != 8 {
		t.Errorf("Expected 8-dim embedding on job, got %d", len(job.Embedding))
	}
}

func TestEmbedBacklogDrains(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{BatchSize: 2})

	described := []*models.Job{
		h.addJob(t, "Write Go services."),
		h.addJob(t, "Operate Kubernetes clusters."),
		h.addJob(t, "Design data models."),
	}
	undescribed := h.addJob(t, "")
	embedded := h.addJob(t, "Already done.")
	embedded.Embedding = []float32{1, 2, 3}
	if err := h.jobs.Update(embedded); err != nil {
		t.Fatal(err)
	}

	summary, err := h.svc.EmbedBacklog(context.Background(), 0)
	if err != nil {
		t.Fatalf("EmbedBacklog failed: %v", err)
	}
	if summary.Processed != 3 {
		t.Errorf("Expected 3 processed, got %d", summary.Processed)
	}
	if summary.Failed != 0 {
		t.Errorf("Expected 0 failed, got %d", summary.Failed)
	}
	if summary.Batches != 2 {
		t.Errorf("Expected 2 batches of size 2, got %d", summary.Batches)
	}
	if summary.Remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", summary.Remaining)
	}

	for _, job := range described {
		got, err := h.jobs.Get(job.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Embedding) != 8 {
			t.Errorf("Job %s should have been embedded, got %d dims", job.ID, len(got.Embedding))
		}
	}
	got, err := h.jobs.Get(undescribed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Embedding != nil {
		t.Error("Job without description should not have been embedded")
	}
}

func TestEmbedBacklogCountsChunkedJobs(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{ChunkSize: 40, ChunkOverlap: 10})

	h.addJob(t, strings.TrimSpace(strings.Repeat("distributed systems ", 10)))

	summary, err := h.svc.EmbedBacklog(context.Background(), 0)
	if err != nil {
		t.Fatalf("EmbedBacklog failed: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("Expected 1 processed, got %d", summary.Processed)
	}
	if summary.Chunked != 1 {
		t.Errorf("Expected 1 chunked job, got %d", summary.Chunked)
	}
	if h.llm.calls() < 2 {
		t.Errorf("Expected multiple chunk calls, got %d", h.llm.calls())
	}
}

func TestEmbedBacklogStopsWithoutProgress(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{})
	h.llm.failAll = true

	h.addJob(t, "First role.")
	h.addJob(t, "Second role.")

	summary, err := h.svc.EmbedBacklog(context.Background(), 0)
	if err != nil {
		t.Fatalf("EmbedBacklog failed: %v", err)
	}
	if summary.Processed != 0 {
		t.Errorf("Expected 0 processed, got %d", summary.Processed)
	}
	if summary.Failed != 2 {
		t.Errorf("Expected 2 failed, got %d", summary.Failed)
	}
	if summary.Batches != 1 {
		t.Errorf("Expected to stop after 1 batch, got %d", summary.Batches)
	}
	if summary.Remaining != 2 {
		t.Errorf("Failed jobs should stay eligible, got %d remaining", summary.Remaining)
	}
}

func TestEmbedBacklogHonorsCancellation(t *testing.T) {
	h := newHarness(t, common.EmbeddingsConfig{})
	h.addJob(t, "A role.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.svc.EmbedBacklog(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if summary.Processed != 0 {
		t.Errorf("Expected no work after cancellation, got %d processed", summary.Processed)
	}
}
