package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Fetcher     FetcherConfig     `toml:"fetcher"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
	Render      RenderConfig      `toml:"render"`
	Crawl       CrawlConfig       `toml:"crawl"`
	Enrich      EnrichConfig      `toml:"enrich"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	Normalize   NormalizeConfig   `toml:"normalize"`
	Embeddings  EmbeddingsConfig  `toml:"embeddings"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude"`
	LLM         LLMConfig         `toml:"llm"`
	Search      SearchConfig      `toml:"search"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Verify      VerifyConfig      `toml:"verify"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level         string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level streamed to run watchers
}

// FetcherConfig controls outbound HTTP behavior for every careers-page and
// ATS API request.
type FetcherConfig struct {
	UserAgent       string        `toml:"user_agent"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	MaxRetries      int           `toml:"max_retries" validate:"gte=0"`
	RetryDelay      time.Duration `toml:"retry_delay"`
	MaxBodySize     int           `toml:"max_body_size"`
	FollowRobotsTxt bool          `toml:"follow_robots_txt"`
}

// RateLimitConfig controls per-host request pacing. With adaptive pacing on,
// sustained success speeds a host up and 429/5xx responses slow it down,
// bounded by MinRate and MaxRate requests per second.
type RateLimitConfig struct {
	DefaultDelay time.Duration `toml:"default_delay"`
	Adaptive     bool          `toml:"adaptive"`
	MinRate      float64       `toml:"min_rate" validate:"gte=0"`
	MaxRate      float64       `toml:"max_rate" validate:"gte=0"`
}

// RenderConfig controls the headless browser used for JavaScript-only
// careers pages.
type RenderConfig struct {
	Enabled  bool          `toml:"enabled"`
	WaitTime time.Duration `toml:"wait_time"` // Time to wait for JavaScript to settle
	Timeout  time.Duration `toml:"timeout"`   // Hard cap per rendered page
	PoolSize int           `toml:"pool_size" validate:"omitempty,gte=1"`
	Headless bool          `toml:"headless"`
}

type CrawlConfig struct {
	Concurrency     int           `toml:"concurrency" validate:"omitempty,gte=1"`      // Parallel companies in a full crawl
	BulkConcurrency int           `toml:"bulk_concurrency" validate:"omitempty,gte=1"` // Parallel companies in an ad-hoc bulk crawl
	BatchSize       int           `toml:"batch_size" validate:"omitempty,gte=1"`
	RecrawlAfter    time.Duration `toml:"recrawl_after"` // Skip companies crawled more recently than this
}

type EnrichConfig struct {
	Concurrency int           `toml:"concurrency" validate:"omitempty,gte=1"`
	BatchSize   int           `toml:"batch_size" validate:"omitempty,gte=1"`
	Families    []string      `toml:"families"`    // ATS families enriched by default
	RetryAfter  time.Duration `toml:"retry_after"` // Back off previously failed jobs for this long
}

// MaintenanceConfig controls periodic re-listing checks over already-crawled
// companies.
type MaintenanceConfig struct {
	Concurrency int           `toml:"concurrency" validate:"omitempty,gte=1"` // Parallel companies per run
	MaxAge      time.Duration `toml:"max_age"`                                // Revisit companies not checked within this window
}

// NormalizeConfig controls canonicalization of raw jobs. The classification
// tables ship embedded in the binary; TablesDir points at a directory whose
// YAML files override their embedded counterparts.
type NormalizeConfig struct {
	FreshnessHalfLifeDays int    `toml:"freshness_half_life_days" validate:"omitempty,gte=1"`
	TablesDir             string `toml:"tables_dir"`
}

type DiscoveryConfig struct {
	USOnly            bool     `toml:"us_only"`            // Drop companies that look non-US
	Sources           []string `toml:"sources"`            // Enabled source names, empty = all automatic sources
	GitHubToken       string   `toml:"github_token"`       // Token for the GitHub organizations source
	ProberLimit       int      `toml:"prober_limit"`       // Companies probed per run
	ProberConcurrency int      `toml:"prober_concurrency"` // Parallel slug probes
	QueueRetryLimit   int      `toml:"queue_retry_limit"`  // Failures before a queue item is marked failed
	NetworkCrawlLimit int      `toml:"network_crawl_limit"`
}

type EmbeddingsConfig struct {
	Dimension    int `toml:"dimension" validate:"omitempty,gte=1"`
	ChunkSize    int `toml:"chunk_size" validate:"omitempty,gte=1"`
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0"`
	BatchSize    int `toml:"batch_size" validate:"omitempty,gte=1"`
	MaxBatches   int `toml:"max_batches" validate:"omitempty,gte=1"`
}

// GeminiConfig contains Google Gemini API configuration for embeddings and
// extraction fallback chat.
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`           // Chat model
	EmbeddingModel string  `toml:"embedding_model"` // Embedding model
	Temperature    float32 `toml:"temperature"`
	Timeout        string  `toml:"timeout"` // Operation timeout as duration string
}

// ClaudeConfig contains Anthropic Claude API configuration for the LLM
// extraction fallback.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// LLMConfig selects which provider handles extraction chat when structural
// parsers come up empty. Embeddings always go through Gemini.
type LLMConfig struct {
	ExtractionProvider string `toml:"extraction_provider" validate:"omitempty,oneof=gemini claude"`
}

// SearchConfig holds Google Custom Search credentials for the search-based
// ATS detection tier. Detection skips that tier when unset.
type SearchConfig struct {
	GoogleAPIKey string `toml:"google_api_key"`
	GoogleCX     string `toml:"google_cx"`
}

type SchedulerConfig struct {
	Enabled             bool   `toml:"enabled"`
	PipelineSchedule    string `toml:"pipeline_schedule"`    // Cron schedule for the full pipeline
	MaintenanceSchedule string `toml:"maintenance_schedule"` // Cron schedule for re-listing checks
	EmbeddingsSchedule  string `toml:"embeddings_schedule"`  // Cron schedule for embedding catch-up
}

// WebSocketConfig contains configuration for run log streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns excluded from broadcasting
}

type VerifyConfig struct {
	Enabled       bool          `toml:"enabled"`
	Boards        []string      `toml:"boards"`   // Job boards checked for listings
	MaxJobs       int           `toml:"max_jobs"` // Jobs verified per run
	Concurrency   int           `toml:"concurrency"`
	ReverifyAfter time.Duration `toml:"reverify_after"` // Re-check a (job, board) pair after this long
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in reperio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
		},
		Fetcher: FetcherConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:  30 * time.Second,
			MaxRetries:      3,
			RetryDelay:      1 * time.Second,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			FollowRobotsTxt: true,
		},
		RateLimit: RateLimitConfig{
			DefaultDelay: 1 * time.Second,
			Adaptive:     true,
			MinRate:      0.1,
			MaxRate:      5.0,
		},
		Render: RenderConfig{
			Enabled:  true,
			WaitTime: 3 * time.Second,
			Timeout:  45 * time.Second,
			PoolSize: 2,
			Headless: true,
		},
		Crawl: CrawlConfig{
			Concurrency:     10,
			BulkConcurrency: 5,
			BatchSize:       500,
			RecrawlAfter:    24 * time.Hour,
		},
		Enrich: EnrichConfig{
			Concurrency: 10,
			BatchSize:   500,
			Families:    []string{"greenhouse", "ashby", "workable"},
			RetryAfter:  24 * time.Hour,
		},
		Maintenance: MaintenanceConfig{
			Concurrency: 5,
			MaxAge:      24 * time.Hour,
		},
		Discovery: DiscoveryConfig{
			USOnly:            false,
			Sources:           []string{},
			ProberLimit:       500,
			ProberConcurrency: 20,
			QueueRetryLimit:   3,
			NetworkCrawlLimit: 200,
		},
		Normalize: NormalizeConfig{
			FreshnessHalfLifeDays: 14,
		},
		Embeddings: EmbeddingsConfig{
			Dimension:    384,
			ChunkSize:    6000,
			ChunkOverlap: 500,
			BatchSize:    100,
			MaxBatches:   500,
		},
		Gemini: GeminiConfig{
			APIKey:         "",
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
			Temperature:    0.2,
			Timeout:        "5m",
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   4000,
			Temperature: 0.2,
			Timeout:     "5m",
		},
		LLM: LLMConfig{
			ExtractionProvider: "claude",
		},
		Search: SearchConfig{},
		Scheduler: SchedulerConfig{
			Enabled:             false,
			PipelineSchedule:    "0 */6 * * *", // Every 6 hours
			MaintenanceSchedule: "30 2 * * *",  // Nightly at 02:30
			EmbeddingsSchedule:  "0 */2 * * *", // Every 2 hours
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
				"HTTP response",
			},
		},
		Verify: VerifyConfig{
			Enabled:       false,
			Boards:        []string{"linkedin", "indeed"},
			MaxJobs:       100,
			Concurrency:   5,
			ReverifyAfter: 7 * 24 * time.Hour,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier files. Priority: CLI flags > environment variables > last config
// file > ... > first config file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the field constraints declared on the config structs.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: REPERIO_ENV, fallback: GO_ENV)
	if env := os.Getenv("REPERIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("REPERIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REPERIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("REPERIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("REPERIO_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging configuration
	if level := os.Getenv("REPERIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("REPERIO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("REPERIO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Fetcher configuration
	if userAgent := os.Getenv("REPERIO_FETCHER_USER_AGENT"); userAgent != "" {
		config.Fetcher.UserAgent = userAgent
	}
	if timeout := os.Getenv("REPERIO_FETCHER_REQUEST_TIMEOUT"); timeout != "" {
		if rt, err := time.ParseDuration(timeout); err == nil {
			config.Fetcher.RequestTimeout = rt
		}
	}
	if maxRetries := os.Getenv("REPERIO_FETCHER_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Fetcher.MaxRetries = mr
		}
	}
	if retryDelay := os.Getenv("REPERIO_FETCHER_RETRY_DELAY"); retryDelay != "" {
		if rd, err := time.ParseDuration(retryDelay); err == nil {
			config.Fetcher.RetryDelay = rd
		}
	}
	if followRobots := os.Getenv("REPERIO_FETCHER_FOLLOW_ROBOTS_TXT"); followRobots != "" {
		if fr, err := strconv.ParseBool(followRobots); err == nil {
			config.Fetcher.FollowRobotsTxt = fr
		}
	}

	// Rate limit configuration
	if delay := os.Getenv("REPERIO_RATE_LIMIT_DEFAULT_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.RateLimit.DefaultDelay = d
		}
	}
	if adaptive := os.Getenv("REPERIO_RATE_LIMIT_ADAPTIVE"); adaptive != "" {
		if a, err := strconv.ParseBool(adaptive); err == nil {
			config.RateLimit.Adaptive = a
		}
	}

	// Render configuration
	if enabled := os.Getenv("REPERIO_RENDER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Render.Enabled = e
		}
	}
	if waitTime := os.Getenv("REPERIO_RENDER_WAIT_TIME"); waitTime != "" {
		if wt, err := time.ParseDuration(waitTime); err == nil {
			config.Render.WaitTime = wt
		}
	}

	// Crawl configuration
	if concurrency := os.Getenv("REPERIO_CRAWL_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Crawl.Concurrency = c
		}
	}
	if batchSize := os.Getenv("REPERIO_CRAWL_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil {
			config.Crawl.BatchSize = bs
		}
	}
	if recrawlAfter := os.Getenv("REPERIO_CRAWL_RECRAWL_AFTER"); recrawlAfter != "" {
		if ra, err := time.ParseDuration(recrawlAfter); err == nil {
			config.Crawl.RecrawlAfter = ra
		}
	}

	// Enrich configuration
	if concurrency := os.Getenv("REPERIO_ENRICH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Enrich.Concurrency = c
		}
	}
	if families := os.Getenv("REPERIO_ENRICH_FAMILIES"); families != "" {
		list := []string{}
		for _, f := range strings.Split(families, ",") {
			if trimmed := strings.TrimSpace(f); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		if len(list) > 0 {
			config.Enrich.Families = list
		}
	}

	// Discovery configuration
	if usOnly := os.Getenv("REPERIO_DISCOVERY_US_ONLY"); usOnly != "" {
		if u, err := strconv.ParseBool(usOnly); err == nil {
			config.Discovery.USOnly = u
		}
	}
	if token := os.Getenv("REPERIO_GITHUB_TOKEN"); token != "" {
		config.Discovery.GitHubToken = token
	} else if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		config.Discovery.GitHubToken = token
	}
	if limit := os.Getenv("REPERIO_DISCOVERY_PROBER_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Discovery.ProberLimit = l
		}
	}

	// Normalize configuration
	if halfLife := os.Getenv("REPERIO_NORMALIZE_HALF_LIFE_DAYS"); halfLife != "" {
		if hl, err := strconv.Atoi(halfLife); err == nil {
			config.Normalize.FreshnessHalfLifeDays = hl
		}
	}
	if tablesDir := os.Getenv("REPERIO_NORMALIZE_TABLES_DIR"); tablesDir != "" {
		config.Normalize.TablesDir = tablesDir
	}

	// Embeddings configuration
	if dimension := os.Getenv("REPERIO_EMBEDDINGS_DIMENSION"); dimension != "" {
		if d, err := strconv.Atoi(dimension); err == nil {
			config.Embeddings.Dimension = d
		}
	}
	if batchSize := os.Getenv("REPERIO_EMBEDDINGS_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil {
			config.Embeddings.BatchSize = bs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("REPERIO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("REPERIO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if embeddingModel := os.Getenv("REPERIO_GEMINI_EMBEDDING_MODEL"); embeddingModel != "" {
		config.Gemini.EmbeddingModel = embeddingModel
	}

	// Claude configuration (REPERIO_ prefix takes priority over ANTHROPIC_API_KEY)
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("REPERIO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("REPERIO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("REPERIO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("REPERIO_LLM_EXTRACTION_PROVIDER"); provider != "" {
		config.LLM.ExtractionProvider = provider
	}

	// Search configuration
	if apiKey := os.Getenv("REPERIO_GOOGLE_API_KEY"); apiKey != "" {
		config.Search.GoogleAPIKey = apiKey
	}
	if cx := os.Getenv("REPERIO_GOOGLE_CX"); cx != "" {
		config.Search.GoogleCX = cx
	}

	// Scheduler configuration
	if enabled := os.Getenv("REPERIO_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("REPERIO_SCHEDULER_PIPELINE_SCHEDULE"); schedule != "" {
		config.Scheduler.PipelineSchedule = schedule
	}

	// Verify configuration
	if enabled := os.Getenv("REPERIO_VERIFY_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Verify.Enabled = e
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// AllowTestURLs returns true if test URLs (localhost, 127.0.0.1, etc.) are
// allowed. Test URLs are only allowed in development mode.
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}
