package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

// TestFragmentReceived tests the FragmentReceived message type
func TestFragmentReceived(t *testing.T) {
	t.Run("with text", func(t *testing.T) {
		msg := FragmentReceived{Text: "The capital "}
		assert.Equal(t, "The capital ", msg.Text)
	})

	t.Run("with empty text", func(t *testing.T) {
		msg := FragmentReceived{Text: ""}
		assert.Equal(t, "", msg.Text)
	})
}

// TestResponseCompleted tests the ResponseCompleted message type
func TestResponseCompleted_WithResult(t *testing.T) {
	result := &domain.QueryResult{
		Response:  "The capital of France is Paris.",
		SessionID: "default",
		Retrieved: []domain.ScoredChunk{
			{Chunk: domain.Chunk{DocumentID: "doc-1"}, Distance: 0.2},
		},
	}
	msg := ResponseCompleted{Result: result, Err: nil}

	require.NotNil(t, msg.Result)
	assert.Equal(t, "The capital of France is Paris.", msg.Result.Response)
	assert.Len(t, msg.Result.Retrieved, 1)
	assert.NoError(t, msg.Err)
}

func TestResponseCompleted_WithError(t *testing.T) {
	err := errors.New("generation failed")
	msg := ResponseCompleted{Result: nil, Err: err}

	assert.Nil(t, msg.Result)
	assert.Error(t, msg.Err)
	assert.Equal(t, "generation failed", msg.Err.Error())
}

// TestStatsLoaded tests the StatsLoaded message type
func TestStatsLoaded(t *testing.T) {
	t.Run("with stats", func(t *testing.T) {
		stats := &domain.EngineStats{DocumentCount: 5, ChunkCount: 40}
		msg := StatsLoaded{Stats: stats}

		require.NotNil(t, msg.Stats)
		assert.Equal(t, 5, msg.Stats.DocumentCount)
		assert.Equal(t, 40, msg.Stats.ChunkCount)
		assert.NoError(t, msg.Err)
	})

	t.Run("with error", func(t *testing.T) {
		msg := StatsLoaded{Err: errors.New("stats failed")}

		assert.Nil(t, msg.Stats)
		assert.Error(t, msg.Err)
	})
}

// TestDocumentsLoaded tests the DocumentsLoaded message type
func TestDocumentsLoaded(t *testing.T) {
	t.Run("with documents", func(t *testing.T) {
		docs := []driving.DocumentSummary{
			{ID: "doc-1", Title: "First"},
			{ID: "doc-2", Title: "Second"},
		}
		msg := DocumentsLoaded{Documents: docs}

		require.Len(t, msg.Documents, 2)
		assert.Equal(t, "First", msg.Documents[0].Title)
		assert.NoError(t, msg.Err)
	})

	t.Run("with error", func(t *testing.T) {
		msg := DocumentsLoaded{Err: errors.New("catalogue failed")}

		assert.Nil(t, msg.Documents)
		assert.Error(t, msg.Err)
	})
}

// TestMemoryCleared tests the MemoryCleared message type
func TestMemoryCleared(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		msg := MemoryCleared{SessionID: "research"}

		assert.Equal(t, "research", msg.SessionID)
		assert.NoError(t, msg.Err)
	})

	t.Run("with error", func(t *testing.T) {
		msg := MemoryCleared{SessionID: "default", Err: errors.New("clear failed")}

		assert.Equal(t, "default", msg.SessionID)
		assert.Error(t, msg.Err)
	})
}

// TestSettingsLoaded tests the SettingsLoaded message type
func TestSettingsLoaded(t *testing.T) {
	t.Run("with settings", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		msg := SettingsLoaded{Settings: &settings}

		require.NotNil(t, msg.Settings)
		assert.Equal(t, domain.AIProvider("ollama"), msg.Settings.LLM.Provider)
		assert.NoError(t, msg.Err)
	})

	t.Run("with error", func(t *testing.T) {
		msg := SettingsLoaded{Err: errors.New("settings failed")}

		assert.Nil(t, msg.Settings)
		assert.Error(t, msg.Err)
	})
}
