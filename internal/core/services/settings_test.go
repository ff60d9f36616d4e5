package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// --- Mock implementations ---

type mockConfigStore struct {
	values map[string]any
	setErr error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	if s, ok := m.values[key].(string); ok {
		return s
	}
	return ""
}

func (m *mockConfigStore) GetInt(key string) int {
	switch v := m.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (m *mockConfigStore) GetFloat64(key string) float64 {
	switch v := m.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func (m *mockConfigStore) GetBool(key string) bool {
	if b, ok := m.values[key].(bool); ok {
		return b
	}
	return false
}

func (m *mockConfigStore) Set(key string, value any) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return nil }
func (m *mockConfigStore) Load() error { return nil }
func (m *mockConfigStore) Path() string {
	return "/tmp/conversa-test.toml"
}

type mockAIValidator struct {
	embeddingErr error
	llmErr       error

	gotEmbedding *domain.EmbeddingSettings
	gotLLM       *domain.LLMSettings
}

func (m *mockAIValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	m.gotEmbedding = config
	return m.embeddingErr
}

func (m *mockAIValidator) ValidateLLM(config *domain.LLMSettings) error {
	m.gotLLM = config
	return m.llmErr
}

// ==================== SettingsService Tests ====================

func TestSettingsService_Get_EmptyStoreReturnsDefaults(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	settings, err := svc.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Embedding.Model, settings.Embedding.Model)
	assert.Equal(t, defaults.LLM.Model, settings.LLM.Model)
	assert.Equal(t, defaults.LLM.MaxTokens, settings.LLM.MaxTokens)
	assert.Equal(t, defaults.LLM.Temperature, settings.LLM.Temperature)
	assert.Equal(t, defaults.Engine, settings.Engine)
}

func TestSettingsService_Get_ReadsStoredValues(t *testing.T) {
	store := newMockConfigStore()
	store.values["embedding.provider"] = "openai"
	store.values["embedding.model"] = "text-embedding-3-small"
	store.values["embedding.api_key"] = "sk-embed"
	store.values["llm.provider"] = "anthropic"
	store.values["llm.model"] = "claude-3-5-sonnet-latest"
	store.values["llm.api_key"] = "sk-ant"
	store.values["llm.max_tokens"] = int64(256)
	store.values["llm.temperature"] = 0.7
	store.values["engine.chunk_size"] = 200
	store.values["engine.chunk_overlap"] = 0
	store.values["engine.top_k"] = 8
	store.values["engine.memory_turns"] = 4
	store.values["engine.metric"] = "cosine"
	store.values["engine.long_term_memory"] = false

	svc := NewSettingsService(store, nil)

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "sk-embed", settings.Embedding.APIKey)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, 256, settings.LLM.MaxTokens)
	assert.InDelta(t, 0.7, settings.LLM.Temperature, 1e-9)
	assert.Equal(t, 200, settings.Engine.ChunkSize)
	assert.Equal(t, 0, settings.Engine.ChunkOverlap, "an explicit zero overlap must not fall back to the default")
	assert.Equal(t, 8, settings.Engine.TopK)
	assert.Equal(t, 4, settings.Engine.MemoryTurns)
	assert.Equal(t, domain.MetricCosine, settings.Engine.Metric)
	assert.False(t, settings.Engine.LongTermMemory)
}

func TestSettingsService_Get_InvalidStoredValuesFallBack(t *testing.T) {
	store := newMockConfigStore()
	store.values["embedding.provider"] = "skynet"
	store.values["engine.metric"] = "manhattan"

	svc := NewSettingsService(store, nil)

	settings, err := svc.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Engine.Metric, settings.Engine.Metric)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	settings := domain.DefaultAppSettings()
	settings.LLM.Model = "llama3.1:8b"
	settings.Engine.TopK = 6
	settings.Engine.Metric = domain.MetricCosine

	require.NoError(t, svc.Save(&settings))

	loaded, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:8b", loaded.LLM.Model)
	assert.Equal(t, 6, loaded.Engine.TopK)
	assert.Equal(t, domain.MetricCosine, loaded.Engine.Metric)
}

func TestSettingsService_Save_SkipsEmptyAPIKeys(t *testing.T) {
	store := newMockConfigStore()
	svc := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	require.NoError(t, svc.Save(&settings))

	_, exists := store.values["embedding.api_key"]
	assert.False(t, exists, "an empty API key must not overwrite a stored one")
	_, exists = store.values["llm.api_key"]
	assert.False(t, exists)
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	store := newMockConfigStore()
	svc := NewSettingsService(store, nil)

	require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model, "default model applies when none given")
	assert.Equal(t, defaultOllamaURL, settings.Embedding.BaseURL)
}

func TestSettingsService_SetEmbeddingProvider_Cloud(t *testing.T) {
	store := newMockConfigStore()
	store.values["embedding.base_url"] = "http://leftover:1234"
	svc := NewSettingsService(store, nil)

	require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "sk-test"))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Empty(t, settings.Embedding.BaseURL, "cloud providers clear any leftover base URL")
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)
}

func TestSettingsService_SetEmbeddingProvider_RequiresAPIKey(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	err := svc.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestSettingsService_SetEmbeddingProvider_RejectsNonEmbeddingProvider(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	err := svc.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "sk-ant")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support embeddings")
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	require.NoError(t, svc.SetLLMProvider(domain.AIProviderAnthropic, "", "sk-ant"))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, "claude-3-5-sonnet-latest", settings.LLM.Model)
	assert.Equal(t, "sk-ant", settings.LLM.APIKey)
}

func TestSettingsService_SetLLMProvider_Invalid(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	err := svc.SetLLMProvider(domain.AIProvider("skynet"), "", "")
	require.Error(t, err)
}

func TestSettingsService_ApplyPreset(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	require.NoError(t, svc.ApplyPreset("large"))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.LLM.Provider)
	assert.Equal(t, "llama3.1:8b", settings.LLM.Model)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "mxbai-embed-large", settings.Embedding.Model)
	assert.Equal(t, defaultOllamaURL, settings.LLM.BaseURL)
}

func TestSettingsService_ApplyPreset_Unknown(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	err := svc.ApplyPreset("xxl")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_SetEngineOption(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	require.NoError(t, svc.SetEngineOption("top_k", "8"))
	require.NoError(t, svc.SetEngineOption("memory_turns", "4"))
	require.NoError(t, svc.SetEngineOption("metric", "cosine"))
	require.NoError(t, svc.SetEngineOption("long_term_memory", "false"))
	require.NoError(t, svc.SetEngineOption("chunk_overlap", "5"))
	require.NoError(t, svc.SetEngineOption("chunk_size", "80"))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 8, settings.Engine.TopK)
	assert.Equal(t, 4, settings.Engine.MemoryTurns)
	assert.Equal(t, domain.MetricCosine, settings.Engine.Metric)
	assert.False(t, settings.Engine.LongTermMemory)
	assert.Equal(t, 5, settings.Engine.ChunkOverlap)
	assert.Equal(t, 80, settings.Engine.ChunkSize)
}

func TestSettingsService_SetEngineOption_Invalid(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "turbo", "on"},
		{"non-numeric top_k", "top_k", "many"},
		{"zero top_k", "top_k", "0"},
		{"negative overlap", "chunk_overlap", "-1"},
		{"bad metric", "metric", "manhattan"},
		{"bad bool", "long_term_memory", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SetEngineOption(tt.key, tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_SetEngineOption_OverlapMustStayBelowChunkSize(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	// Default overlap is 50, so a chunk size of 10 would invert them.
	err := svc.SetEngineOption("chunk_size", "10")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = svc.SetEngineOption("chunk_overlap", "600")
	require.Error(t, err)
}

func TestSettingsService_Validate(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)
	assert.NoError(t, svc.Validate(), "defaults describe a usable local engine")
}

func TestSettingsService_Validate_UnconfiguredCloudProvider(t *testing.T) {
	store := newMockConfigStore()
	store.values["embedding.provider"] = "openai"
	svc := NewSettingsService(store, nil)

	err := svc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding provider is not configured")
}

func TestSettingsService_Validate_BadEngineValues(t *testing.T) {
	store := newMockConfigStore()
	store.values["engine.chunk_overlap"] = 600
	svc := NewSettingsService(store, nil)

	err := svc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestSettingsService_ValidateEmbeddingConfig(t *testing.T) {
	validator := &mockAIValidator{}
	svc := NewSettingsService(newMockConfigStore(), validator)

	require.NoError(t, svc.ValidateEmbeddingConfig())
	require.NotNil(t, validator.gotEmbedding)
	assert.Equal(t, "nomic-embed-text", validator.gotEmbedding.Model)
}

func TestSettingsService_ValidateEmbeddingConfig_NoValidator(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)
	assert.NoError(t, svc.ValidateEmbeddingConfig())
}

func TestSettingsService_ValidateLLMConfig_Failure(t *testing.T) {
	validator := &mockAIValidator{llmErr: assert.AnError}
	svc := NewSettingsService(newMockConfigStore(), validator)

	err := svc.ValidateLLMConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
