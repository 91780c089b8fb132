package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", config.Server.Port)
	}
	if config.Storage.Badger.Path != "./data" {
		t.Errorf("Storage.Badger.Path = %q, want ./data", config.Storage.Badger.Path)
	}
	if config.Crawl.Concurrency != 10 {
		t.Errorf("Crawl.Concurrency = %d, want 10", config.Crawl.Concurrency)
	}
	if config.Crawl.BulkConcurrency != 5 {
		t.Errorf("Crawl.BulkConcurrency = %d, want 5", config.Crawl.BulkConcurrency)
	}
	if config.Crawl.RecrawlAfter != 24*time.Hour {
		t.Errorf("Crawl.RecrawlAfter = %v, want 24h", config.Crawl.RecrawlAfter)
	}
	if config.Embeddings.Dimension != 384 {
		t.Errorf("Embeddings.Dimension = %d, want 384", config.Embeddings.Dimension)
	}
	if config.Embeddings.ChunkSize != 6000 {
		t.Errorf("Embeddings.ChunkSize = %d, want 6000", config.Embeddings.ChunkSize)
	}
	if config.Embeddings.ChunkOverlap != 500 {
		t.Errorf("Embeddings.ChunkOverlap = %d, want 500", config.Embeddings.ChunkOverlap)
	}
	if got := config.Enrich.Families; len(got) != 3 || got[0] != "greenhouse" || got[1] != "ashby" || got[2] != "workable" {
		t.Errorf("Enrich.Families = %v, want [greenhouse ashby workable]", got)
	}
	if config.Discovery.USOnly {
		t.Error("Discovery.USOnly should default to false")
	}
	if config.RateLimit.MinRate != 0.1 || config.RateLimit.MaxRate != 5.0 {
		t.Errorf("RateLimit rates = %v..%v, want 0.1..5.0", config.RateLimit.MinRate, config.RateLimit.MaxRate)
	}
	if config.IsProduction() {
		t.Error("default environment should not be production")
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	if err := os.WriteFile(base, []byte(`
environment = "production"

[server]
port = 9090

[crawl]
concurrency = 4
`), 0644); err != nil {
		t.Fatalf("write base config: %v", err)
	}

	override := filepath.Join(dir, "override.toml")
	if err := os.WriteFile(override, []byte(`
[server]
port = 9999
`), 0644); err != nil {
		t.Fatalf("write override config: %v", err)
	}

	config, err := LoadFromFiles(base, override)
	if err != nil {
		t.Fatalf("LoadFromFiles() error: %v", err)
	}

	// Later file wins
	if config.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", config.Server.Port)
	}
	// Earlier file values survive when not overridden
	if config.Crawl.Concurrency != 4 {
		t.Errorf("Crawl.Concurrency = %d, want 4", config.Crawl.Concurrency)
	}
	if !config.IsProduction() {
		t.Error("environment from file should be production")
	}
	// Defaults survive for untouched sections
	if config.Embeddings.Dimension != 384 {
		t.Errorf("Embeddings.Dimension = %d, want default 384", config.Embeddings.Dimension)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REPERIO_SERVER_PORT", "7070")
	t.Setenv("REPERIO_LOG_LEVEL", "debug")
	t.Setenv("REPERIO_DISCOVERY_US_ONLY", "true")
	t.Setenv("REPERIO_ENRICH_FAMILIES", "greenhouse, lever")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles() error: %v", err)
	}

	if config.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", config.Server.Port)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", config.Logging.Level)
	}
	if !config.Discovery.USOnly {
		t.Error("Discovery.USOnly should be overridden to true")
	}
	if got := config.Enrich.Families; len(got) != 2 || got[0] != "greenhouse" || got[1] != "lever" {
		t.Errorf("Enrich.Families = %v, want [greenhouse lever]", got)
	}
	if config.Claude.APIKey != "sk-test-123" {
		t.Errorf("Claude.APIKey = %q, want sk-test-123", config.Claude.APIKey)
	}
}

func TestClaudeKeyPrefixPriority(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-generic")
	t.Setenv("REPERIO_CLAUDE_API_KEY", "sk-specific")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatalf("LoadFromFiles() error: %v", err)
	}

	if config.Claude.APIKey != "sk-specific" {
		t.Errorf("Claude.APIKey = %q, want sk-specific", config.Claude.APIKey)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 3000, "0.0.0.0")
	if config.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", config.Server.Port)
	}
	if config.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", config.Server.Host)
	}

	// Zero values leave config untouched
	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 3000 || config.Server.Host != "0.0.0.0" {
		t.Error("zero flag values should not override config")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"unknown llm provider", func(c *Config) { c.LLM.ExtractionProvider = "cohere" }},
		{"negative retries", func(c *Config) { c.Fetcher.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"PRODUCTION", true},
		{" production ", true},
		{"development", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			config := &Config{Environment: tt.env}
			if got := config.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}
