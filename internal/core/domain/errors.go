package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngest indicates a document could not be ingested
	// (empty content, unreadable source).
	ErrIngest = errors.New("ingest failed")

	// ErrEmbedding indicates the embedding provider failed or is
	// unavailable. Per-chunk embedding failures reject only the
	// affected chunk.
	ErrEmbedding = errors.New("embedding failed")

	// ErrDimensionMismatch indicates a vector does not match the
	// index's fixed dimension. The affected item is rejected; the
	// rest of the batch proceeds.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexCorrupt indicates the persisted vector count does not
	// match the payload count. The index self-heals by starting
	// empty; this error is reported, never fatal.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrGeneration indicates the generation engine failed or timed
	// out. The query transitions to FAILED and memory is untouched.
	ErrGeneration = errors.New("generation failed")

	// ErrWriteLockTimeout indicates the index writer slot could not
	// be acquired in time.
	ErrWriteLockTimeout = errors.New("index write lock timeout")

	// ErrQueryCancelled indicates the caller cancelled the query.
	// No conversation turn is recorded.
	ErrQueryCancelled = errors.New("query cancelled")

	// ErrLLMUnavailable indicates the generation service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingest and retrieval are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrSessionNotFound indicates an unknown conversation session.
	ErrSessionNotFound = errors.New("session not found")
)
