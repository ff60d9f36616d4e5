package driving

import "github.com/custodia-labs/conversa-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the generation provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// ApplyPreset switches both models to a named preset.
	ApplyPreset(name string) error

	// SetEngineOption updates a retrieval/memory knob by key
	// (chunk_size, chunk_overlap, top_k, memory_turns, metric,
	// long_term_memory).
	SetEngineOption(key string, value string) error

	// Validate checks if current settings describe a usable engine.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current generation configuration by pinging the provider.
	ValidateLLMConfig() error
}
