// Package flat provides an exact nearest-neighbour vector index with
// durable file persistence. Vectors live in a binary file, chunk
// payloads in a parallel JSONL file, and every mutation rewrites both
// through an atomic write-then-rename so a crash never leaves a
// half-updated index behind.
package flat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultLockTimeout bounds how long a mutation waits for the writer
// slot before giving up.
const DefaultLockTimeout = 5 * time.Second

// entry pairs a monotonically assigned ID with its chunk. The chunk
// carries the embedding.
type entry struct {
	id    uint64
	chunk domain.Chunk
}

// scoredEntry holds an entry with its distance to a query vector.
type scoredEntry struct {
	ent  *entry
	dist float32
}

// Index is an exact, in-memory vector index persisted to disk.
//
// Reads take a snapshot of the entry slice under a read lock and rank
// without holding any lock. Mutations are serialized through a single
// writer slot, persist to disk first and only then publish the new
// entries, so concurrent searches never observe a partial batch.
type Index struct {
	dir         string
	dim         int
	metric      domain.DistanceMetric
	lockTimeout time.Duration

	mu      sync.RWMutex
	entries []entry
	nextID  uint64
	closed  bool

	// writer serializes Add, Compact and RemoveByDocument together
	// with their persistence I/O. Persistence happens while holding
	// the slot but never while holding mu.
	writer chan struct{}
}

// Option configures the index.
type Option func(*Index)

// WithLockTimeout sets the writer-slot acquisition timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(idx *Index) {
		if d > 0 {
			idx.lockTimeout = d
		}
	}
}

// New opens the index stored in dir, creating an empty one if no
// persisted state exists. Persisted state that fails validation
// (count mismatch between vectors and payloads, changed dimension or
// metric, unreadable files) is discarded: the index restarts empty
// and the problem is reported as a warning rather than an error.
func New(dir string, dimension int, metric domain.DistanceMetric, opts ...Option) (*Index, error) {
	if dir == "" {
		return nil, errors.New("flat: data directory cannot be empty")
	}
	if dimension <= 0 {
		return nil, errors.New("flat: dimension must be positive")
	}
	if !metric.IsValid() {
		return nil, fmt.Errorf("flat: unsupported distance metric %q", metric)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx := &Index{
		dir:         dir,
		dim:         dimension,
		metric:      metric,
		lockTimeout: DefaultLockTimeout,
		nextID:      1,
		writer:      make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(idx)
	}

	entries, nextID, err := load(dir, dimension, metric)
	switch {
	case err == nil:
		idx.entries = entries
		idx.nextID = nextID
		logger.Debug("Vector index loaded: %d entries (dim=%d, metric=%s)", len(entries), dimension, metric)
	case errors.Is(err, errNoIndex):
		logger.Debug("No persisted vector index in %s, starting empty", dir)
	default:
		// Self-heal: discard the persisted state and restart empty.
		logger.Warn("Vector index in %s is unusable (%v); reinitializing as empty. Re-ingest documents to rebuild it.", dir, err)
	}

	return idx, nil
}

// Add appends chunks to the index. Chunks whose embedding does not
// match the index dimension are rejected individually. The batch is
// persisted before it becomes visible to searches.
func (idx *Index) Add(ctx context.Context, chunks []domain.Chunk) (int, int, error) {
	if len(chunks) == 0 {
		return 0, 0, nil
	}

	release, err := idx.acquireWriter(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer release()

	idx.mu.RLock()
	closed := idx.closed
	base := idx.entries
	nextID := idx.nextID
	idx.mu.RUnlock()

	if closed {
		return 0, 0, fmt.Errorf("%w: index is closed", domain.ErrVectorIndexUnavailable)
	}

	accepted := make([]entry, 0, len(chunks))
	rejected := 0
	for _, chunk := range chunks {
		if len(chunk.Embedding) != idx.dim {
			rejected++
			logger.Debug("Rejecting chunk %s: embedding has %d dimensions, index has %d",
				chunk.ID, len(chunk.Embedding), idx.dim)
			continue
		}
		accepted = append(accepted, entry{id: nextID, chunk: chunk})
		nextID++
	}

	if len(accepted) == 0 {
		return 0, rejected, nil
	}

	if err := idx.persist(nextID, base, accepted); err != nil {
		return 0, rejected, fmt.Errorf("persisting batch: %w", err)
	}

	idx.mu.Lock()
	idx.entries = append(idx.entries, accepted...)
	idx.nextID = nextID
	idx.mu.Unlock()

	return len(accepted), rejected, nil
}

// Search returns up to k chunks ranked by ascending distance to the
// query vector, ties broken by earlier insertion. With a filter, a
// pool of k ranked candidates is filtered first; if that yields fewer
// than k matches the pool is widened once to k*FilterExpandFactor,
// and whatever then passes the filter is returned. Filter values
// compare by their string form so CLI-supplied filters match numeric
// metadata.
func (idx *Index) Search(_ context.Context, query []float32, k int, filter map[string]any) ([]domain.ScoredChunk, error) {
	idx.mu.RLock()
	closed := idx.closed
	snapshot := idx.entries
	idx.mu.RUnlock()

	if closed {
		return nil, fmt.Errorf("%w: index is closed", domain.ErrVectorIndexUnavailable)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), idx.dim)
	}

	if len(snapshot) == 0 {
		// Empty index is a legitimate zero-result state.
		return []domain.ScoredChunk{}, nil
	}

	ranked := rank(idx.metric, query, snapshot)

	if len(filter) == 0 {
		return collect(ranked, k), nil
	}

	matches := filterPool(ranked, k, filter)
	if len(matches) < k {
		matches = filterPool(ranked, k*domain.FilterExpandFactor, filter)
	}

	return collect(matches, k), nil
}

// Compact rebuilds the index without near-duplicate entries: any
// entry within threshold of an earlier entry is dropped. Returns the
// number of entries removed.
func (idx *Index) Compact(ctx context.Context, threshold float32) (int, error) {
	if threshold < 0 {
		return 0, fmt.Errorf("%w: threshold must not be negative", domain.ErrInvalidInput)
	}

	return idx.rebuild(ctx, func(kept []entry, candidate *entry) bool {
		for i := range kept {
			if distance(idx.metric, kept[i].chunk.Embedding, candidate.chunk.Embedding) <= threshold {
				return false
			}
		}
		return true
	})
}

// RemoveByDocument rebuilds the index without the chunks of one
// document. Returns the number of entries removed.
func (idx *Index) RemoveByDocument(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: document ID cannot be empty", domain.ErrInvalidInput)
	}

	return idx.rebuild(ctx, func(_ []entry, candidate *entry) bool {
		return candidate.chunk.DocumentID != documentID
	})
}

// rebuild filters the entries through keep in insertion order,
// persists the survivors and publishes them. Returns how many entries
// were dropped.
func (idx *Index) rebuild(ctx context.Context, keep func(kept []entry, candidate *entry) bool) (int, error) {
	release, err := idx.acquireWriter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	idx.mu.RLock()
	closed := idx.closed
	base := idx.entries
	nextID := idx.nextID
	idx.mu.RUnlock()

	if closed {
		return 0, fmt.Errorf("%w: index is closed", domain.ErrVectorIndexUnavailable)
	}

	kept := make([]entry, 0, len(base))
	for i := range base {
		if keep(kept, &base[i]) {
			kept = append(kept, base[i])
		}
	}

	removed := len(base) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := idx.persist(nextID, kept); err != nil {
		return 0, fmt.Errorf("persisting rebuilt index: %w", err)
	}

	idx.mu.Lock()
	idx.entries = kept
	idx.mu.Unlock()

	return removed, nil
}

// Count returns the number of entries in the index.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimensions returns the fixed embedding dimension.
func (idx *Index) Dimensions() int {
	return idx.dim
}

// Metric returns the distance metric fixed at index creation.
func (idx *Index) Metric() domain.DistanceMetric {
	return idx.metric
}

// Close marks the index closed. State is already persisted by every
// mutation, so there is nothing to flush.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

// acquireWriter claims the writer slot, failing after the configured
// timeout or when ctx is cancelled first.
func (idx *Index) acquireWriter(ctx context.Context) (func(), error) {
	timer := time.NewTimer(idx.lockTimeout)
	defer timer.Stop()

	select {
	case idx.writer <- struct{}{}:
		return func() { <-idx.writer }, nil
	case <-timer.C:
		return nil, fmt.Errorf("write slot not acquired within %s: %w", idx.lockTimeout, domain.ErrWriteLockTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("acquiring write slot: %w", ctx.Err())
	}
}

// rank scores every entry against the query and sorts by ascending
// distance, earlier insertion (lower ID) winning ties.
func rank(metric domain.DistanceMetric, query []float32, entries []entry) []scoredEntry {
	scored := make([]scoredEntry, len(entries))
	for i := range entries {
		scored[i] = scoredEntry{
			ent:  &entries[i],
			dist: distance(metric, query, entries[i].chunk.Embedding),
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].dist != scored[j].dist {
			return scored[i].dist < scored[j].dist
		}
		return scored[i].ent.id < scored[j].ent.id
	})

	return scored
}

// filterPool returns the entries among the first pool ranked
// candidates whose metadata contains every filter pair.
func filterPool(ranked []scoredEntry, pool int, filter map[string]any) []scoredEntry {
	if pool > len(ranked) {
		pool = len(ranked)
	}

	matches := make([]scoredEntry, 0, pool)
	for _, cand := range ranked[:pool] {
		if matchesFilter(cand.ent.chunk.Metadata, filter) {
			matches = append(matches, cand)
		}
	}
	return matches
}

// matchesFilter reports whether metadata contains every filter pair.
// Values compare by string form: metadata numbers round-trip through
// JSON as float64 while filters arrive as strings.
func matchesFilter(meta map[string]any, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// collect converts up to k scored entries into results.
func collect(ranked []scoredEntry, k int) []domain.ScoredChunk {
	if k > len(ranked) {
		k = len(ranked)
	}

	results := make([]domain.ScoredChunk, k)
	for i := 0; i < k; i++ {
		results[i] = domain.ScoredChunk{
			Chunk:    ranked[i].ent.chunk,
			Distance: ranked[i].dist,
		}
	}
	return results
}
