package services

import (
	"fmt"
	"strconv"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMTemperature = "llm.temperature"
	keyChunkSize      = "engine.chunk_size"
	keyChunkOverlap   = "engine.chunk_overlap"
	keyTopK           = "engine.top_k"
	keyMemoryTurns    = "engine.memory_turns"
	keyMetric         = "engine.metric"
	keyLongTermMemory = "engine.long_term_memory"
)

// defaultOllamaURL is used when a local provider has no explicit endpoint.
const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:       s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
		},
		Engine: domain.EngineSettings{
			ChunkSize:      s.getInt(keyChunkSize, defaults.Engine.ChunkSize),
			ChunkOverlap:   s.getIntAllowZero(keyChunkOverlap, defaults.Engine.ChunkOverlap),
			TopK:           s.getInt(keyTopK, defaults.Engine.TopK),
			MemoryTurns:    s.getInt(keyMemoryTurns, defaults.Engine.MemoryTurns),
			Metric:         s.getMetric(keyMetric, defaults.Engine.Metric),
			LongTermMemory: s.getBool(keyLongTermMemory, defaults.Engine.LongTermMemory),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	// Save embedding settings
	if err := s.configStore.Set(keyEmbedProvider, settings.Embedding.Provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyEmbedModel, settings.Embedding.Model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if err := s.configStore.Set(keyEmbedBaseURL, settings.Embedding.BaseURL); err != nil {
		return fmt.Errorf("save embedding base_url: %w", err)
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	// Save LLM settings
	if err := s.configStore.Set(keyLLMProvider, settings.LLM.Provider.String()); err != nil {
		return fmt.Errorf("save llm provider: %w", err)
	}
	if err := s.configStore.Set(keyLLMModel, settings.LLM.Model); err != nil {
		return fmt.Errorf("save llm model: %w", err)
	}
	if err := s.configStore.Set(keyLLMBaseURL, settings.LLM.BaseURL); err != nil {
		return fmt.Errorf("save llm base_url: %w", err)
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}
	if err := s.configStore.Set(keyLLMMaxTokens, settings.LLM.MaxTokens); err != nil {
		return fmt.Errorf("save llm max_tokens: %w", err)
	}
	if err := s.configStore.Set(keyLLMTemperature, settings.LLM.Temperature); err != nil {
		return fmt.Errorf("save llm temperature: %w", err)
	}

	// Save engine settings
	if err := s.configStore.Set(keyChunkSize, settings.Engine.ChunkSize); err != nil {
		return fmt.Errorf("save chunk_size: %w", err)
	}
	if err := s.configStore.Set(keyChunkOverlap, settings.Engine.ChunkOverlap); err != nil {
		return fmt.Errorf("save chunk_overlap: %w", err)
	}
	if err := s.configStore.Set(keyTopK, settings.Engine.TopK); err != nil {
		return fmt.Errorf("save top_k: %w", err)
	}
	if err := s.configStore.Set(keyMemoryTurns, settings.Engine.MemoryTurns); err != nil {
		return fmt.Errorf("save memory_turns: %w", err)
	}
	if err := s.configStore.Set(keyMetric, settings.Engine.Metric.String()); err != nil {
		return fmt.Errorf("save metric: %w", err)
	}
	if err := s.configStore.Set(keyLongTermMemory, settings.Engine.LongTermMemory); err != nil {
		return fmt.Errorf("save long_term_memory: %w", err)
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate provider supports embeddings
	validProviders := domain.AllEmbeddingProviders()
	valid := false
	for _, p := range validProviders {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		defaults := domain.DefaultEmbeddingModels()
		if defaultModel, ok := defaults[provider]; ok {
			settings.Embedding.Model = defaultModel
		}
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		// Local providers need a base URL
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.Embedding.BaseURL = ""
	}

	// Set API key
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the generation provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		defaults := domain.DefaultLLMModels()
		if defaultModel, ok := defaults[provider]; ok {
			settings.LLM.Model = defaultModel
		}
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		// Local providers need a base URL
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.LLM.BaseURL = ""
	}

	// Set API key
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// ApplyPreset switches both models to a named size tier. Presets name
// local Ollama models, so applying one also switches both providers
// to Ollama.
func (s *SettingsService) ApplyPreset(name string) error {
	preset, ok := domain.ModelPresets()[name]
	if !ok {
		return fmt.Errorf("%w: unknown preset %q (choose from small, medium, large)", domain.ErrInvalidInput, name)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = domain.AIProviderOllama
	settings.LLM.Model = preset.LLMModel
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Embedding.Model = preset.EmbeddingModel
	if settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = defaultOllamaURL
	}
	if settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = defaultOllamaURL
	}

	return s.Save(settings)
}

// SetEngineOption updates one retrieval or memory knob by key.
// Accepted keys: chunk_size, chunk_overlap, top_k, memory_turns,
// metric, long_term_memory.
func (s *SettingsService) SetEngineOption(key string, value string) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	switch key {
	case "chunk_size":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		settings.Engine.ChunkSize = n
	case "chunk_overlap":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer, got %q", domain.ErrInvalidInput, key, value)
		}
		settings.Engine.ChunkOverlap = n
	case "top_k":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		settings.Engine.TopK = n
	case "memory_turns":
		n, err := parsePositiveInt(key, value)
		if err != nil {
			return err
		}
		settings.Engine.MemoryTurns = n
	case "metric":
		metric := domain.DistanceMetric(value)
		if !metric.IsValid() {
			return fmt.Errorf("%w: unknown metric %q (choose l2 or cosine)", domain.ErrInvalidInput, value)
		}
		settings.Engine.Metric = metric
	case "long_term_memory":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false, got %q", domain.ErrInvalidInput, key, value)
		}
		settings.Engine.LongTermMemory = enabled
	default:
		return fmt.Errorf("%w: unknown engine option %q", domain.ErrInvalidInput, key)
	}

	if settings.Engine.ChunkOverlap >= settings.Engine.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			domain.ErrInvalidInput, settings.Engine.ChunkOverlap, settings.Engine.ChunkSize)
	}

	return s.Save(settings)
}

// Validate checks if current settings describe a usable engine.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider is not configured (run 'conversa settings')")
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider is not configured (run 'conversa settings')")
	}

	engine := settings.Engine
	if engine.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", engine.ChunkSize)
	}
	if engine.ChunkOverlap < 0 || engine.ChunkOverlap >= engine.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", engine.ChunkOverlap)
	}
	if engine.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", engine.TopK)
	}
	if engine.MemoryTurns <= 0 {
		return fmt.Errorf("memory_turns must be positive, got %d", engine.MemoryTurns)
	}
	if !engine.Metric.IsValid() {
		return fmt.Errorf("unknown distance metric: %s", engine.Metric)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// parsePositiveInt parses an engine knob that must be > 0.
func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrInvalidInput, key, value)
	}
	return n, nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero distinguishes an explicit zero from an absent key,
// since zero is a meaningful value for chunk_overlap.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat64(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getMetric(key string, defaultVal domain.DistanceMetric) domain.DistanceMetric {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	metric := domain.DistanceMetric(val)
	if !metric.IsValid() {
		return defaultVal
	}
	return metric
}
