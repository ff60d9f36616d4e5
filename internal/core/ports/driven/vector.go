package driven

import (
	"context"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// VectorIndex is the durable store of embeddings and their chunk
// payloads, with exact nearest-neighbour search.
//
// Concurrency contract: Add calls are serialized against each other
// and against persistence; Search calls run concurrently with each
// other and with Add, and never observe a partially-appended batch.
type VectorIndex interface {
	// Add appends chunks (with embeddings) to the index and persists
	// the batch durably before returning. Chunks whose embedding does
	// not match the index dimension are rejected individually; the
	// returned counts report both outcomes. The error is non-nil only
	// for whole-batch failures (lock timeout, persistence failure).
	Add(ctx context.Context, chunks []domain.Chunk) (added, rejected int, err error)

	// Search returns up to k chunks ranked by ascending distance to
	// the query vector. Ties are broken by earlier insertion order.
	// A non-nil filter restricts results to chunks whose metadata
	// contains every filter pair; the candidate pool is widened at
	// most once and the result may legitimately hold fewer than k
	// chunks. An empty index yields an empty result, not an error.
	Search(ctx context.Context, query []float32, k int, filter map[string]any) ([]domain.ScoredChunk, error)

	// Compact rebuilds the index without near-duplicate entries: any
	// entry within threshold of an earlier entry is dropped, so the
	// earliest of each duplicate group survives. Returns the number
	// of entries removed.
	Compact(ctx context.Context, threshold float32) (int, error)

	// RemoveByDocument rebuilds the index without the chunks of one
	// document. Returns the number of entries removed.
	RemoveByDocument(ctx context.Context, documentID string) (int, error)

	// Count returns the number of entries in the index.
	Count() int

	// Dimensions returns the fixed embedding dimension.
	Dimensions() int

	// Metric returns the distance metric fixed at index creation.
	Metric() domain.DistanceMetric

	// Close persists any pending state and releases resources.
	Close() error
}
