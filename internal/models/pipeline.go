package models

import "time"

// Pipeline stage names. A PipelineRun row carries one of these in Stage;
// stage rows launched by a full pipeline run additionally carry Cascade=true
// and log the umbrella run they belong to.
const (
	StageDiscovery    = "discovery"
	StageCrawl        = "crawl"
	StageEnrichment   = "enrichment"
	StageEmbeddings   = "embeddings"
	StageFullPipeline = "full_pipeline"
)

// PipelineOptions selects which stages a full pipeline run executes and how
// much work each may take on. Zero values mean run everything with defaults.
type PipelineOptions struct {
	SkipDiscovery  bool `json:"skip_discovery"`
	SkipCrawl      bool `json:"skip_crawl"`
	SkipEnrichment bool `json:"skip_enrichment"`
	SkipEmbeddings bool `json:"skip_embeddings"`

	// CrawlLimit caps how many companies the crawl stage visits and
	// DiscoveryLimit caps processed queue items; 0 uses the stage default.
	// EnrichLimit caps enriched jobs where 0 means drain fully, and
	// EmbedBatchSize overrides the configured embedding batch size.
	CrawlLimit     int `json:"crawl_limit"`
	EnrichLimit    int `json:"enrich_limit"`
	EmbedBatchSize int `json:"embedding_batch_size"`
	DiscoveryLimit int `json:"discovery_queue_limit"`
}

// OperationStatus describes one in-flight exclusive operation.
type OperationStatus struct {
	Key         string    `json:"key"`
	StartedAt   time.Time `json:"started_at"`
	CurrentStep string    `json:"current_step,omitempty"`
}

// CompanyStats summarizes the company table for the status endpoint.
type CompanyStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	WithATS      int `json:"with_ats"`
	CrawledToday int `json:"crawled_today"`
}

// JobStats summarizes the job table for the status endpoint.
type JobStats struct {
	Total           int `json:"total"`
	Active          int `json:"active"`
	WithDescription int `json:"with_description"`
	WithPostedAt    int `json:"with_posted_at"`
	WithEmbedding   int `json:"with_embeddings"`
}

// PipelineStats is the corpus-health snapshot returned by the status
// endpoint: table counts plus the discovery queue broken down by status.
type PipelineStats struct {
	Companies CompanyStats        `json:"companies"`
	Jobs      JobStats            `json:"jobs"`
	Queue     map[QueueStatus]int `json:"discovery_queue"`
}
