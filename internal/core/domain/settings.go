package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// DistanceMetric selects how vector similarity is measured.
// The metric is fixed for the lifetime of an index instance.
type DistanceMetric string

// Available metrics.
const (
	// MetricL2 ranks by squared Euclidean distance.
	MetricL2 DistanceMetric = "l2"

	// MetricCosine ranks by cosine distance (1 - cosine similarity).
	MetricCosine DistanceMetric = "cosine"
)

// IsValid returns true if the metric is recognised.
func (m DistanceMetric) IsValid() bool {
	switch m {
	case MetricL2, MetricCosine:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m DistanceMetric) String() string {
	return string(m)
}

// Description returns a human-readable description of the metric.
func (m DistanceMetric) Description() string {
	switch m {
	case MetricL2:
		return "Squared Euclidean distance"
	case MetricCosine:
		return "Cosine distance"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the generation service provider.
	Provider AIProvider

	// Model is the generation model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// MaxTokens caps the generated response length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64
}

// IsConfigured returns true if the generation provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// EngineSettings holds retrieval and memory behaviour configuration.
type EngineSettings struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int

	// ChunkOverlap is the shared span between consecutive chunks.
	ChunkOverlap int

	// TopK is the default number of chunks retrieved per query.
	TopK int

	// MemoryTurns bounds the short-term buffer per session.
	MemoryTurns int

	// Metric selects the index distance metric.
	Metric DistanceMetric

	// LongTermMemory enables the append-only conversation transcript.
	LongTermMemory bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds generation provider settings.
	LLM LLMSettings

	// Engine holds retrieval and memory settings.
	Engine EngineSettings
}

// Default engine parameters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultMaxTokens    = 512
	DefaultTemperature  = 0.1
)

// DefaultAppSettings returns settings with sensible defaults.
// The defaults assume a local Ollama instance so the engine works
// out of the box; cloud providers require the settings wizard.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    "nomic-embed-text",
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       "llama3.2",
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Engine: EngineSettings{
			ChunkSize:      DefaultChunkSize,
			ChunkOverlap:   DefaultChunkOverlap,
			TopK:           DefaultTopK,
			MemoryTurns:    DefaultMemoryTurns,
			Metric:         MetricL2,
			LongTermMemory: true,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each generation provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// ModelPreset bundles a generation and embedding model choice.
type ModelPreset struct {
	// Name is the preset identifier.
	Name string

	// Description explains the trade-off the preset makes.
	Description string

	// LLMModel is the generation model.
	LLMModel string

	// EmbeddingModel is the embedding model.
	EmbeddingModel string
}

// ModelPresets returns the built-in size tiers for local models.
// Switching presets changes the active models without touching the
// rest of the configuration.
func ModelPresets() map[string]ModelPreset {
	return map[string]ModelPreset{
		"small": {
			Name:           "small",
			Description:    "Fastest responses, lowest quality",
			LLMModel:       "llama3.2:1b",
			EmbeddingModel: "nomic-embed-text",
		},
		"medium": {
			Name:           "medium",
			Description:    "Balanced speed and quality",
			LLMModel:       "llama3.2",
			EmbeddingModel: "nomic-embed-text",
		},
		"large": {
			Name:           "large",
			Description:    "Best quality, slowest responses",
			LLMModel:       "llama3.1:8b",
			EmbeddingModel: "mxbai-embed-large",
		},
	}
}

// PresetNames returns preset names in display order.
func PresetNames() []string {
	return []string{"small", "medium", "large"}
}
