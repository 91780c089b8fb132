package interfaces

import (
	"context"
)

// LLMProvider identifies which backing API an LLM service talks to
type LLMProvider string

const (
	// LLMProviderAnthropic indicates the Claude API is used for chat
	LLMProviderAnthropic LLMProvider = "anthropic"

	// LLMProviderGemini indicates the Gemini API is used for embeddings and chat
	LLMProviderGemini LLMProvider = "gemini"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// LLMService defines the interface for language model operations including
// embeddings generation and chat completions. The pipeline uses embeddings
// for job similarity and chat for structured extraction when deterministic
// parsers come up empty.
type LLMService interface {
	// Embed generates an embedding vector for the given text. The dimension
	// is fixed at construction time and reported by EmbeddingDimension.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbeddingDimension returns the length of vectors produced by Embed.
	EmbeddingDimension() int

	// Chat generates a completion response based on the conversation history.
	// The messages slice should contain the full conversation context
	// including system prompts, user messages, and previous assistant
	// responses.
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the LLM service is operational and can handle
	// requests.
	HealthCheck(ctx context.Context) error

	// GetProvider returns which API backs this service.
	GetProvider() LLMProvider

	// Close releases resources and performs cleanup operations.
	Close() error
}
