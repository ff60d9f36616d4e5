package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/conversa-cli/internal/chunker"
	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// RAGService orchestrates the retrieval-augmented generation
// pipeline: ingest feeds the vector index, query walks a per-call
// state machine from embedding through retrieval and prompt assembly
// to generation.
type RAGService struct {
	embedding  driven.EmbeddingService
	generation driven.GenerationService
	index      driven.VectorIndex
	docStore   driven.DocumentStore
	splitter   *chunker.Splitter
	prompts    *PromptBuilder
	memory     *SessionMemory

	topK    int
	genOpts driven.GenerateOptions
}

// queryRun tracks one query's state machine. Each query owns its run;
// concurrent queries never share one.
type queryRun struct {
	id    string
	state domain.QueryState
}

// NewRAGService creates the orchestrator. The document store is
// optional; without it ingested documents are simply not catalogued.
// The AI services may also be nil: operations needing a missing
// provider fail with ErrEmbeddingUnavailable or ErrLLMUnavailable
// instead of taking the whole engine down.
func NewRAGService(
	embedding driven.EmbeddingService,
	generation driven.GenerationService,
	index driven.VectorIndex,
	docStore driven.DocumentStore,
	splitter *chunker.Splitter,
	prompts *PromptBuilder,
	memory *SessionMemory,
	engine domain.EngineSettings,
	genOpts driven.GenerateOptions,
) *RAGService {
	topK := engine.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	return &RAGService{
		embedding:  embedding,
		generation: generation,
		index:      index,
		docStore:   docStore,
		splitter:   splitter,
		prompts:    prompts,
		memory:     memory,
		topK:       topK,
		genOpts:    genOpts,
	}
}

// Ingest chunks the document, embeds the chunks and commits them to
// the vector index. Individual embedding failures reject only the
// affected chunks; the report carries both counts. When every chunk
// fails to embed the report is returned together with an error, since
// that points at an unavailable embedding model rather than bad input.
//
// A document with a caller-supplied ID is an upsert: its previous
// chunks are removed from the index before the new ones are added.
func (s *RAGService) Ingest(ctx context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	logger.Section("Document Ingest")

	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document content is empty", domain.ErrIngest)
	}
	if s.embedding == nil {
		return nil, fmt.Errorf("%w. Run 'conversa settings wizard' to fix", domain.ErrEmbeddingUnavailable)
	}

	reingest := doc.ID != ""
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	logger.Debug("Document %s: %q (%d bytes)", doc.ID, doc.Title, len(doc.Content))

	// 1. Split into chunks
	chunks := s.splitter.Split(doc)
	logger.Debug("Split into %d chunks", len(chunks))

	// 2. Embed the chunks, salvaging what we can if the batch fails
	embedded, rejected, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	// 3. Commit to the index; the index rejects dimension mismatches
	// per chunk. On re-ingest the superseded chunks go first.
	if reingest {
		removed, err := s.index.RemoveByDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("removing superseded chunks: %w", err)
		}
		if removed > 0 {
			logger.Debug("Re-ingest dropped %d existing chunks of document %s", removed, doc.ID)
		}
	}

	added, rejectedByIndex, err := s.index.Add(ctx, embedded)
	if err != nil {
		return nil, fmt.Errorf("adding chunks to index: %w", err)
	}
	rejected += rejectedByIndex

	// 4. Catalogue the document. The catalogue is bookkeeping around
	// the index, so a failure here degrades listings but not search.
	if s.docStore != nil && added > 0 {
		if err := s.docStore.SaveDocument(ctx, doc, added); err != nil {
			logger.Warn("Failed to catalogue document %s: %v", doc.ID, err)
		}
	}

	report := &domain.IngestReport{
		DocumentID:     doc.ID,
		ChunksAdded:    added,
		ChunksRejected: rejected,
	}

	logger.Info("Ingest complete: %d chunks added, %d rejected", added, rejected)

	if added == 0 && rejected > 0 {
		return report, fmt.Errorf("%w: all %d chunks were rejected", domain.ErrEmbedding, rejected)
	}
	return report, nil
}

// embedChunks embeds all chunks, preferring one batch call. If the
// batch fails the chunks are embedded one by one so a single bad
// chunk cannot sink the whole document. Returns the successfully
// embedded chunks and the number rejected.
func (s *RAGService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, int, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	embeddings, err := s.embedding.EmbedBatch(ctx, texts)
	if err == nil {
		if len(embeddings) != len(chunks) {
			return nil, 0, fmt.Errorf("%w: provider returned %d embeddings for %d chunks",
				domain.ErrEmbedding, len(embeddings), len(chunks))
		}
		for i := range chunks {
			chunks[i].Embedding = embeddings[i]
		}
		return chunks, 0, nil
	}

	if ctx.Err() != nil {
		return nil, 0, fmt.Errorf("embedding chunks: %w", ctx.Err())
	}

	logger.Warn("Batch embedding failed (%v); embedding %d chunks individually", err, len(chunks))

	embedded := make([]domain.Chunk, 0, len(chunks))
	rejected := 0
	for i := range chunks {
		embedding, err := s.embedding.Embed(ctx, chunks[i].Content)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, fmt.Errorf("embedding chunks: %w", ctx.Err())
			}
			rejected++
			logger.Debug("Chunk %s rejected: %v", chunks[i].ID, err)
			continue
		}
		chunks[i].Embedding = embedding
		embedded = append(embedded, chunks[i])
	}

	return embedded, rejected, nil
}

// Query runs the pipeline without incremental delivery.
func (s *RAGService) Query(ctx context.Context, text string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	return s.QueryStream(ctx, text, opts, nil)
}

// QueryStream runs the pipeline, forwarding response fragments to
// deliver as they arrive. The exchange is recorded in session memory
// only when generation fully completes: a failed or cancelled query
// leaves memory untouched.
func (s *RAGService) QueryStream(
	ctx context.Context, text string, opts domain.QueryOptions, deliver driving.FragmentHandler,
) (*domain.QueryResult, error) {
	logger.Section("Query Pipeline")

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", domain.ErrInvalidInput)
	}
	if s.embedding == nil {
		return nil, fmt.Errorf("%w. Run 'conversa settings wizard' to fix", domain.ErrEmbeddingUnavailable)
	}
	if s.generation == nil {
		return nil, fmt.Errorf("%w. Run 'conversa settings wizard' to fix", domain.ErrLLMUnavailable)
	}

	if opts.TopK <= 0 {
		opts.TopK = s.topK
	}
	if opts.SessionID == "" {
		opts.SessionID = domain.DefaultSessionID
	}

	run := &queryRun{id: uuid.New().String()[:8], state: domain.StateIdle}
	result := &domain.QueryResult{SessionID: opts.SessionID}

	logger.Debug("Query %s: %q (k=%d, session=%s, history=%t)",
		run.id, text, opts.TopK, opts.SessionID, opts.UseHistory)

	// 1. Embed the query
	s.transition(run, domain.StateEmbeddingQuery)
	embedding, err := s.embedding.Embed(ctx, text)
	if err != nil {
		return s.fail(run, result, fmt.Errorf("%w: embedding query: %w", domain.ErrEmbedding, err))
	}

	// 2. Retrieve context. An empty index legitimately yields zero
	// chunks and the pipeline continues on history alone.
	s.transition(run, domain.StateRetrieving)
	retrieved, err := s.index.Search(ctx, embedding, opts.TopK, opts.Filter)
	if err != nil {
		return s.fail(run, result, fmt.Errorf("searching index: %w", err))
	}
	result.Retrieved = retrieved
	logger.Debug("Query %s: retrieved %d chunks", run.id, len(retrieved))

	// 3. Build the prompt
	s.transition(run, domain.StatePromptBuild)
	var history []domain.Turn
	if opts.UseHistory {
		history = s.memory.Context(opts.SessionID)
	}
	prompt := s.prompts.Build(text, retrieved, history)
	logger.Debug("Query %s: prompt is %d bytes (%d history turns)", run.id, len(prompt), len(history))

	// 4. Generate the response
	s.transition(run, domain.StateGenerating)
	raw, err := s.generation.Generate(ctx, prompt, s.genOpts, driven.FragmentFunc(deliver))
	if err != nil {
		return s.fail(run, result, fmt.Errorf("%w: %w", domain.ErrGeneration, err))
	}

	// 5. Record the completed exchange
	result.Response = cleanResponse(raw)
	s.memory.Append(ctx, opts.SessionID, domain.Turn{
		Query:     text,
		Response:  result.Response,
		Timestamp: time.Now().UTC(),
	})

	s.transition(run, domain.StateComplete)
	result.State = domain.StateComplete
	logger.Info("Query %s complete: %d chunks, %d response bytes", run.id, len(retrieved), len(result.Response))

	return result, nil
}

// fail moves the run to its terminal failure state. Caller
// cancellation becomes CANCELLED, everything else FAILED. Memory is
// never updated on either path.
func (s *RAGService) fail(run *queryRun, result *domain.QueryResult, err error) (*domain.QueryResult, error) {
	if errors.Is(err, context.Canceled) {
		s.transition(run, domain.StateCancelled)
		result.State = domain.StateCancelled
		logger.Warn("Query %s cancelled", run.id)
		return result, fmt.Errorf("%w: %w", domain.ErrQueryCancelled, err)
	}

	s.transition(run, domain.StateFailed)
	result.State = domain.StateFailed
	logger.Warn("Query %s failed: %v", run.id, err)
	return result, err
}

// transition advances the run's state machine.
func (s *RAGService) transition(run *queryRun, next domain.QueryState) {
	if !run.state.CanTransition(next) {
		logger.Warn("Query %s: illegal state transition %s -> %s", run.id, run.state, next)
	}
	logger.Debug("Query %s: %s -> %s", run.id, run.state, next)
	run.state = next
}

// Stats reports engine counters.
func (s *RAGService) Stats(ctx context.Context) (*domain.EngineStats, error) {
	stats := &domain.EngineStats{
		ChunkCount:      s.index.Count(),
		IndexDimensions: s.index.Dimensions(),
		ActiveModel:     "not configured",
		EmbeddingModel:  "not configured",
		Sessions:        len(s.memory.Sessions()),
	}
	if s.generation != nil {
		stats.ActiveModel = s.generation.ModelName()
	}
	if s.embedding != nil {
		stats.EmbeddingModel = s.embedding.ModelName()
	}

	if s.docStore != nil {
		count, err := s.docStore.CountDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting documents: %w", err)
		}
		stats.DocumentCount = count
	}

	return stats, nil
}

// Compact removes near-duplicate index entries within threshold.
func (s *RAGService) Compact(ctx context.Context, threshold float32) (int, error) {
	logger.Section("Index Compaction")

	removed, err := s.index.Compact(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("compacting index: %w", err)
	}

	logger.Info("Compaction removed %d near-duplicate chunks", removed)
	return removed, nil
}
