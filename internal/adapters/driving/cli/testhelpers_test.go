package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

// setupTestServices wires mock services into the package vars and
// returns a cleanup that restores the previous values.
func setupTestServices() func() {
	oldRAG := ragService
	oldCatalog := catalogService
	oldMemory := memoryService
	oldSettings := settingsService

	ragService = &mockRAGService{}
	catalogService = &mockCatalogService{}
	memoryService = &mockMemoryService{}
	settingsService = newMockSettingsService()

	return func() {
		ragService = oldRAG
		catalogService = oldCatalog
		memoryService = oldMemory
		settingsService = oldSettings
	}
}

// mockRAGService returns canned pipeline results.
type mockRAGService struct{}

func (m *mockRAGService) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	return &domain.IngestReport{DocumentID: doc.ID, ChunksAdded: 3}, nil
}

func (m *mockRAGService) Query(
	ctx context.Context, text string, opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	return m.QueryStream(ctx, text, opts, nil)
}

func (m *mockRAGService) QueryStream(
	_ context.Context, _ string, opts domain.QueryOptions, deliver driving.FragmentHandler,
) (*domain.QueryResult, error) {
	if deliver != nil {
		if err := deliver("mock "); err != nil {
			return nil, err
		}
		if err := deliver("response"); err != nil {
			return nil, err
		}
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}

	return &domain.QueryResult{
		Response: "mock response",
		Retrieved: []domain.ScoredChunk{
			{
				Chunk:    domain.Chunk{ID: "chunk-1", DocumentID: "doc-1", Content: "context passage", Position: 0},
				Distance: 0.1234,
			},
		},
		State:     domain.StateComplete,
		SessionID: sessionID,
	}, nil
}

func (m *mockRAGService) Stats(context.Context) (*domain.EngineStats, error) {
	return &domain.EngineStats{
		DocumentCount:   2,
		ChunkCount:      10,
		ActiveModel:     "llama3.2",
		EmbeddingModel:  "nomic-embed-text",
		IndexDimensions: 768,
		Sessions:        1,
	}, nil
}

func (m *mockRAGService) Compact(context.Context, float32) (int, error) {
	return 4, nil
}

// mockRAGServiceError fails every operation.
type mockRAGServiceError struct{}

func (m *mockRAGServiceError) Ingest(context.Context, *domain.Document) (*domain.IngestReport, error) {
	return nil, errors.New("mock failure")
}

func (m *mockRAGServiceError) Query(context.Context, string, domain.QueryOptions) (*domain.QueryResult, error) {
	return nil, errors.New("mock failure")
}

func (m *mockRAGServiceError) QueryStream(
	context.Context, string, domain.QueryOptions, driving.FragmentHandler,
) (*domain.QueryResult, error) {
	return nil, errors.New("mock failure")
}

func (m *mockRAGServiceError) Stats(context.Context) (*domain.EngineStats, error) {
	return nil, errors.New("mock failure")
}

func (m *mockRAGServiceError) Compact(context.Context, float32) (int, error) {
	return 0, errors.New("mock failure")
}

// mockRAGServiceRecorder captures the documents passed to Ingest.
type mockRAGServiceRecorder struct {
	mockRAGService
	docs []*domain.Document
}

func (m *mockRAGServiceRecorder) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	m.docs = append(m.docs, doc)
	return &domain.IngestReport{DocumentID: doc.ID, ChunksAdded: 3}, nil
}

// mockRAGServiceCancelled reports a cancelled query.
type mockRAGServiceCancelled struct {
	mockRAGService
}

func (m *mockRAGServiceCancelled) QueryStream(
	context.Context, string, domain.QueryOptions, driving.FragmentHandler,
) (*domain.QueryResult, error) {
	return &domain.QueryResult{State: domain.StateCancelled},
		fmt.Errorf("%w: %w", domain.ErrQueryCancelled, context.Canceled)
}

// mockCatalogService returns a fixed two-document catalogue.
type mockCatalogService struct{}

func (m *mockCatalogService) List(context.Context) ([]driving.DocumentSummary, error) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []driving.DocumentSummary{
		{ID: "doc-1", Title: "First Document", URI: "/tmp/first.txt", ChunkCount: 4, CreatedAt: base, UpdatedAt: base},
		{ID: "doc-2", Title: "Second Document", URI: "inline", ChunkCount: 2, CreatedAt: base, UpdatedAt: base},
	}, nil
}

func (m *mockCatalogService) Get(_ context.Context, documentID string) (*driving.DocumentSummary, error) {
	if documentID != "doc-1" {
		return nil, fmt.Errorf("getting document %s: %w", documentID, domain.ErrNotFound)
	}
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &driving.DocumentSummary{
		ID:         "doc-1",
		Title:      "First Document",
		URI:        "/tmp/first.txt",
		Content:    "full document text",
		ChunkCount: 4,
		Metadata:   map[string]string{"author": "tester"},
		CreatedAt:  base,
		UpdatedAt:  base,
	}, nil
}

func (m *mockCatalogService) Remove(context.Context, string) (int, error) {
	return 4, nil
}

// mockMemoryService returns a fixed session with one live turn and a
// two-turn transcript.
type mockMemoryService struct{}

func (m *mockMemoryService) History(context.Context, string) ([]domain.Turn, error) {
	return []domain.Turn{
		{
			Query:     "first question",
			Response:  "first answer",
			Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}, nil
}

func (m *mockMemoryService) Transcript(context.Context, string) ([]domain.Turn, error) {
	return []domain.Turn{
		{
			Query:     "first question",
			Response:  "first answer",
			Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			Query:     "second question",
			Response:  "second answer",
			Timestamp: time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC),
		},
	}, nil
}

func (m *mockMemoryService) Clear(context.Context, string) error {
	return nil
}

func (m *mockMemoryService) Sessions(context.Context) ([]domain.SessionInfo, error) {
	return []domain.SessionInfo{
		{ID: "default", Turns: 1, Recorded: 2},
	}, nil
}

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings domain.AppSettings
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	settings := m.settings
	return &settings, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) ApplyPreset(name string) error {
	preset, ok := domain.ModelPresets()[name]
	if !ok {
		return fmt.Errorf("%w: unknown preset %q", domain.ErrInvalidInput, name)
	}
	m.settings.LLM.Model = preset.LLMModel
	m.settings.Embedding.Model = preset.EmbeddingModel
	return nil
}

func (m *mockSettingsService) SetEngineOption(string, string) error {
	return nil
}

func (m *mockSettingsService) Validate() error {
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return nil
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return nil
}
