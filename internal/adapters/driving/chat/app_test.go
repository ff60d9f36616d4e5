package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

func newTestPorts() *Ports {
	return &Ports{
		RAG:      &MockRAGService{},
		Catalog:  &MockCatalogService{},
		Memory:   &MockMemoryService{},
		Settings: &MockSettingsService{},
	}
}

// typeString feeds each rune of s to the app as a key press.
func typeString(app *App, s string) {
	for _, r := range s {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// drainQuery pumps streaming events through Update until the query
// reaches its terminal state and no command remains.
func drainQuery(app *App, cmd tea.Cmd) {
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return
		}
		_, cmd = app.Update(msg)
	}
}

func TestNewApp_Success(t *testing.T) {
	ports := newTestPorts()

	app, err := NewApp(ports, Options{})

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, domain.DefaultSessionID, app.Session())
	assert.False(t, app.Generating())
}

func TestNewApp_MissingRAGService(t *testing.T) {
	ports := &Ports{
		RAG:     nil,
		Catalog: &MockCatalogService{},
	}

	app, err := NewApp(ports, Options{})

	assert.ErrorIs(t, err, ErrMissingRAGService)
	assert.Nil(t, app)
}

func TestNewApp_SessionOption(t *testing.T) {
	app, err := NewApp(newTestPorts(), Options{SessionID: "research"})

	require.NoError(t, err)
	assert.Equal(t, "research", app.Session())
}

func TestNewApp_GreetsWithSession(t *testing.T) {
	app, err := NewApp(newTestPorts(), Options{})

	require.NoError(t, err)
	transcript := app.Transcript()
	require.Len(t, transcript, 1)
	assert.Contains(t, transcript[0], `session "default"`)
	assert.Contains(t, transcript[0], "/help")
}

func TestApp_WithContext(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})

	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")
	result := app.WithContext(ctx)

	assert.Equal(t, app, result)
}

func TestApp_Init(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})

	cmd := app.Init()

	assert.NotNil(t, cmd)
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})

	model, cmd := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
}

func TestApp_View_NotReady(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})

	view := app.View()

	assert.Contains(t, view, "Initialising")
}

func TestApp_View_ShowsHeaderAndPrompt(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	view := app.View()

	assert.Contains(t, view, "conversa")
	assert.Contains(t, view, "session default")
	assert.Contains(t, view, "Ask about your documents")
}

func TestApp_Update_TypedCharactersReachInput(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	typeString(app, "hello")

	assert.Equal(t, "hello", app.Input())
}

func TestApp_Update_EnterWithEmptyInput(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
}

func TestApp_QueryFlow_StreamsAndCompletes(t *testing.T) {
	var gotQuestion string
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryStreamFunc: func(
			ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
		) (*domain.QueryResult, error) {
			gotQuestion = text
			if err := deliver("Paris "); err != nil {
				return nil, err
			}
			if err := deliver("is the capital."); err != nil {
				return nil, err
			}
			return &domain.QueryResult{
				Response:  "Paris is the capital.",
				State:     domain.StateComplete,
				SessionID: opts.SessionID,
			}, nil
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "capital of France?")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.True(t, app.Generating())
	assert.Empty(t, app.Input())

	drainQuery(app, cmd)

	assert.False(t, app.Generating())
	assert.Equal(t, "capital of France?", gotQuestion)
	transcript := app.Transcript()
	require.GreaterOrEqual(t, len(transcript), 3)
	assert.Equal(t, "capital of France?", transcript[len(transcript)-2])
	assert.Equal(t, "Paris is the capital.", transcript[len(transcript)-1])
	assert.NoError(t, app.Err())
}

func TestApp_QueryFlow_PassesOptions(t *testing.T) {
	var gotOpts domain.QueryOptions
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryStreamFunc: func(
			ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
		) (*domain.QueryResult, error) {
			gotOpts = opts
			return &domain.QueryResult{State: domain.StateComplete}, nil
		},
	}
	app, err := NewApp(ports, Options{SessionID: "research", TopK: 9, NoHistory: true})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "question")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drainQuery(app, cmd)

	assert.Equal(t, "research", gotOpts.SessionID)
	assert.Equal(t, 9, gotOpts.TopK)
	assert.False(t, gotOpts.UseHistory)
	assert.True(t, gotOpts.Stream)
}

func TestApp_QueryFlow_ShowContext(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryStreamFunc: func(
			ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
		) (*domain.QueryResult, error) {
			return &domain.QueryResult{
				Response: "answer",
				Retrieved: []domain.ScoredChunk{
					{Chunk: domain.Chunk{DocumentID: "doc-1", Position: 2}, Distance: 0.1234},
				},
				State: domain.StateComplete,
			}, nil
		},
	}
	app, err := NewApp(ports, Options{ShowContext: true})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "question")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drainQuery(app, cmd)

	transcript := app.Transcript()
	last := transcript[len(transcript)-1]
	assert.Contains(t, last, "Context:")
	assert.Contains(t, last, "doc-1")
	assert.Contains(t, last, "0.1234")
}

func TestApp_QueryFlow_ErrorRecorded(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryStreamFunc: func(
			ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
		) (*domain.QueryResult, error) {
			return nil, errors.New("model offline")
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "question")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drainQuery(app, cmd)

	assert.Error(t, app.Err())
	transcript := app.Transcript()
	assert.Contains(t, transcript[len(transcript)-1], "model offline")
}

func TestApp_EscCancelsGeneration(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryStreamFunc: func(
			ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
		) (*domain.QueryResult, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("%w: %w", domain.ErrQueryCancelled, ctx.Err())
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "question")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, app.Generating())

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drainQuery(app, cmd)

	assert.False(t, app.Generating())
	assert.NoError(t, app.Err())
	transcript := app.Transcript()
	assert.Equal(t, "(cancelled)", transcript[len(transcript)-1])
}

func TestApp_EscWhenIdleDoesNothing(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
}

func TestApp_EnterIgnoredWhileGenerating(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryStreamFunc: func(
			ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
		) (*domain.QueryResult, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("%w: %w", domain.ErrQueryCancelled, ctx.Err())
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "first")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	typeString(app, "second")
	_, second := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, second)
	assert.Equal(t, "second", app.Input())

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drainQuery(app, cmd)
}

func TestApp_CtrlC_Quits(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.NotNil(t, cmd)
}

func TestApp_SlashHelp(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	typeString(app, "/help")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, app.Input())
	transcript := app.Transcript()
	last := transcript[len(transcript)-1]
	assert.Contains(t, last, "/stats")
	assert.Contains(t, last, "/quit")
	assert.Contains(t, last, "Esc cancels")
}

func TestApp_SlashQuit(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	typeString(app, "/quit")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.NotNil(t, cmd)
}

func TestApp_SlashStats(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		StatsFunc: func(ctx context.Context) (*domain.EngineStats, error) {
			return &domain.EngineStats{
				DocumentCount:   2,
				ChunkCount:      10,
				ActiveModel:     "llama3.2",
				EmbeddingModel:  "nomic-embed-text",
				IndexDimensions: 768,
				Sessions:        1,
			}, nil
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "/stats")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	transcript := app.Transcript()
	last := transcript[len(transcript)-1]
	assert.Contains(t, last, "Documents: 2")
	assert.Contains(t, last, "Index entries: 10 (768 dimensions)")
	assert.Contains(t, last, "llama3.2")
}

func TestApp_SlashStats_Error(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		StatsFunc: func(ctx context.Context) (*domain.EngineStats, error) {
			return nil, errors.New("index unavailable")
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "/stats")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	transcript := app.Transcript()
	assert.Contains(t, transcript[len(transcript)-1], "index unavailable")
}

func TestApp_SlashDocs(t *testing.T) {
	ports := newTestPorts()
	ports.Catalog = &MockCatalogService{
		ListFunc: func(ctx context.Context) ([]driving.DocumentSummary, error) {
			return []driving.DocumentSummary{
				{ID: "doc-1", Title: "First Document", ChunkCount: 4},
				{ID: "doc-2", Title: "Second Document", ChunkCount: 2},
			}, nil
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "/docs")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	transcript := app.Transcript()
	last := transcript[len(transcript)-1]
	assert.Contains(t, last, "2 documents in the catalogue")
	assert.Contains(t, last, "First Document (4 chunks)")
}

func TestApp_SlashDocs_WithoutCatalog(t *testing.T) {
	ports := newTestPorts()
	ports.Catalog = nil
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "/docs")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	transcript := app.Transcript()
	assert.Contains(t, transcript[len(transcript)-1], "not available")
}

func TestApp_SlashClear(t *testing.T) {
	var clearedSession string
	ports := newTestPorts()
	ports.Memory = &MockMemoryService{
		ClearFunc: func(ctx context.Context, sessionID string) error {
			clearedSession = sessionID
			return nil
		},
	}
	app, err := NewApp(ports, Options{SessionID: "research"})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "/clear")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, "research", clearedSession)
	transcript := app.Transcript()
	assert.Contains(t, transcript[len(transcript)-1], "cleared for session research")
}

func TestApp_SlashModel(t *testing.T) {
	app, err := NewApp(newTestPorts(), Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "/model")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app.Update(cmd())

	transcript := app.Transcript()
	last := transcript[len(transcript)-1]
	assert.Contains(t, last, "Generation: ollama/llama3.2")
	assert.Contains(t, last, "Embedding: ollama/nomic-embed-text")
}

func TestApp_UnknownCommand(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})
	app.SetDimensions(80, 24)

	typeString(app, "/frobnicate")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	transcript := app.Transcript()
	assert.Contains(t, transcript[len(transcript)-1], "Unknown command /frobnicate")
}

func TestApp_View_ShowsGeneratingStatus(t *testing.T) {
	ports := newTestPorts()
	ports.RAG = &MockRAGService{
		QueryStreamFunc: func(
			ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
		) (*domain.QueryResult, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("%w: %w", domain.ErrQueryCancelled, ctx.Err())
		},
	}
	app, err := NewApp(ports, Options{})
	require.NoError(t, err)
	app.SetDimensions(80, 24)

	typeString(app, "question")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	view := app.View()
	assert.Contains(t, view, "Generating...")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drainQuery(app, cmd)
}

func TestApp_SetDimensions(t *testing.T) {
	app, _ := NewApp(newTestPorts(), Options{})

	assert.False(t, app.Ready())

	app.SetDimensions(100, 50)

	assert.True(t, app.Ready())
}
