package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestQueryState_IsTerminal tests terminal state classification
func TestQueryState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    QueryState
		terminal bool
	}{
		{StateIdle, false},
		{StateEmbeddingQuery, false},
		{StateRetrieving, false},
		{StatePromptBuild, false},
		{StateGenerating, false},
		{StateComplete, true},
		{StateFailed, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}

// TestQueryState_CanTransition_HappyPath tests the full pipeline sequence
func TestQueryState_CanTransition_HappyPath(t *testing.T) {
	sequence := []QueryState{
		StateIdle,
		StateEmbeddingQuery,
		StateRetrieving,
		StatePromptBuild,
		StateGenerating,
		StateComplete,
	}

	for i := 0; i < len(sequence)-1; i++ {
		assert.True(t, sequence[i].CanTransition(sequence[i+1]),
			"%s -> %s must be legal", sequence[i], sequence[i+1])
	}
}

// TestQueryState_CanTransition_FailureFromAnyLiveState tests abort paths
func TestQueryState_CanTransition_FailureFromAnyLiveState(t *testing.T) {
	live := []QueryState{
		StateIdle, StateEmbeddingQuery, StateRetrieving,
		StatePromptBuild, StateGenerating,
	}

	for _, s := range live {
		assert.True(t, s.CanTransition(StateFailed), "%s -> FAILED must be legal", s)
		assert.True(t, s.CanTransition(StateCancelled), "%s -> CANCELLED must be legal", s)
	}
}

// TestQueryState_CanTransition_Illegal tests forbidden transitions
func TestQueryState_CanTransition_Illegal(t *testing.T) {
	// No skipping phases.
	assert.False(t, StateIdle.CanTransition(StateRetrieving))
	assert.False(t, StateEmbeddingQuery.CanTransition(StateGenerating))
	assert.False(t, StateRetrieving.CanTransition(StateComplete))

	// No leaving terminal states.
	assert.False(t, StateComplete.CanTransition(StateIdle))
	assert.False(t, StateFailed.CanTransition(StateEmbeddingQuery))
	assert.False(t, StateCancelled.CanTransition(StateFailed))

	// No going backwards.
	assert.False(t, StateGenerating.CanTransition(StateRetrieving))
}

// TestDefaultQueryOptions tests query option defaults
func TestDefaultQueryOptions(t *testing.T) {
	opts := DefaultQueryOptions()

	assert.Equal(t, DefaultTopK, opts.TopK)
	assert.True(t, opts.UseHistory)
	assert.True(t, opts.Stream)
	assert.Nil(t, opts.Filter)
	assert.Empty(t, opts.SessionID)
}
