package domain

// Default query parameters.
const (
	// DefaultTopK is the number of chunks retrieved per query.
	DefaultTopK = 4

	// FilterExpandFactor widens the candidate pool exactly once when a
	// metadata filter leaves fewer than k matches. Retrieval never
	// widens beyond this single expansion and may return fewer than k.
	FilterExpandFactor = 4
)

// QueryOptions configures a single query.
type QueryOptions struct {
	// TopK is the maximum number of chunks to retrieve.
	TopK int

	// Filter restricts retrieval to chunks whose metadata contains
	// every listed key with an equal value. Nil means no filter.
	Filter map[string]any

	// UseHistory includes recent conversation turns in the prompt.
	UseHistory bool

	// Stream forwards generation fragments to the caller as they
	// arrive instead of only returning the final text.
	Stream bool

	// SessionID selects the conversation session. Empty selects the
	// default session.
	SessionID string
}

// DefaultQueryOptions returns options with sensible defaults.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		TopK:       DefaultTopK,
		UseHistory: true,
		Stream:     true,
	}
}

// QueryState is a phase of the per-query state machine.
type QueryState string

// Query states. A query starts IDLE and moves through the pipeline
// phases to exactly one terminal state.
const (
	StateIdle           QueryState = "IDLE"
	StateEmbeddingQuery QueryState = "EMBEDDING_QUERY"
	StateRetrieving     QueryState = "RETRIEVING"
	StatePromptBuild    QueryState = "PROMPT_BUILD"
	StateGenerating     QueryState = "GENERATING"
	StateComplete       QueryState = "COMPLETE"
	StateFailed         QueryState = "FAILED"
	StateCancelled      QueryState = "CANCELLED"
)

// IsTerminal returns true if no further transition is allowed.
func (s QueryState) IsTerminal() bool {
	switch s {
	case StateComplete, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// CanTransition returns true if moving from s to next is a legal
// state-machine step.
func (s QueryState) CanTransition(next QueryState) bool {
	if s.IsTerminal() {
		return false
	}
	// Failure and cancellation are reachable from every live state.
	if next == StateFailed || next == StateCancelled {
		return true
	}
	switch s {
	case StateIdle:
		return next == StateEmbeddingQuery
	case StateEmbeddingQuery:
		return next == StateRetrieving
	case StateRetrieving:
		return next == StatePromptBuild
	case StatePromptBuild:
		return next == StateGenerating
	case StateGenerating:
		return next == StateComplete
	default:
		return false
	}
}

// String returns the string representation.
func (s QueryState) String() string {
	return string(s)
}

// QueryResult is the outcome of a completed query.
type QueryResult struct {
	// Response is the full generated answer (cleaned).
	Response string

	// Retrieved lists the chunks used for context, ranked nearest
	// first.
	Retrieved []ScoredChunk

	// State is the terminal state the query reached.
	State QueryState

	// SessionID is the session the query ran in.
	SessionID string
}

// IngestReport summarises one ingest call. Partial embedding failures
// reject individual chunks without aborting the call.
type IngestReport struct {
	// DocumentID is the id assigned to the ingested document.
	DocumentID string

	// ChunksAdded is the number of chunks committed to the index.
	ChunksAdded int

	// ChunksRejected is the number of chunks dropped due to
	// embedding failures or dimension mismatches.
	ChunksRejected int
}

// EngineStats is a point-in-time snapshot of the engine.
type EngineStats struct {
	// DocumentCount is the number of catalogued documents.
	DocumentCount int

	// ChunkCount is the number of entries in the vector index.
	ChunkCount int

	// ActiveModel is the generation model currently configured.
	ActiveModel string

	// EmbeddingModel is the embedding model currently configured.
	EmbeddingModel string

	// IndexDimensions is the fixed embedding dimension of the index.
	IndexDimensions int

	// Sessions is the number of live conversation sessions.
	Sessions int
}
