package llm

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// NewExtractionService creates the chat-capable LLM service used as the
// extraction fallback, selected by llm.extraction_provider. Claude is the
// default when no provider is configured.
func NewExtractionService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.ExtractionProvider))
	if provider == "" {
		provider = "claude"
	}

	logger.Info().Str("provider", provider).Msg("Initializing extraction LLM service")

	switch provider {
	case "claude", "anthropic":
		return NewClaudeService(&cfg.Claude, logger)
	case "gemini", "google":
		return NewGeminiService(&cfg.Gemini, cfg.Embeddings.Dimension, logger)
	default:
		return nil, fmt.Errorf("unsupported extraction provider '%s': must be 'claude' or 'gemini'", provider)
	}
}

// NewEmbeddingService creates the LLM service used for embedding generation.
// Embeddings always go through Gemini regardless of the extraction provider.
func NewEmbeddingService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	return NewGeminiService(&cfg.Gemini, cfg.Embeddings.Dimension, logger)
}
