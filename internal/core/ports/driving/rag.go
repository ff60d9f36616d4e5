package driving

import (
	"context"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// FragmentHandler receives response fragments as they stream out of
// the generation provider. Returning an error aborts the stream.
type FragmentHandler func(fragment string) error

// RAGService is the retrieval-augmented generation engine.
type RAGService interface {
	// Ingest chunks a document, embeds the chunks and adds them to
	// the vector index. The report counts chunks added and chunks
	// rejected (embedding failures, dimension mismatches).
	Ingest(ctx context.Context, doc *domain.Document) (*domain.IngestReport, error)

	// Query runs the full pipeline: embed the query, retrieve context,
	// build the prompt, generate a response and record the exchange in
	// session memory. The result carries the response, the retrieved
	// chunks and the terminal pipeline state.
	Query(ctx context.Context, text string, opts domain.QueryOptions) (*domain.QueryResult, error)

	// QueryStream is Query with incremental delivery: fragments are
	// passed to deliver as they arrive, and the completed result is
	// returned once generation finishes.
	QueryStream(ctx context.Context, text string, opts domain.QueryOptions, deliver FragmentHandler) (*domain.QueryResult, error)

	// Stats reports engine counters for display.
	Stats(ctx context.Context) (*domain.EngineStats, error)

	// Compact removes near-duplicate index entries closer than
	// threshold, keeping the earliest of each group. Returns the
	// number of entries removed.
	Compact(ctx context.Context, threshold float32) (int, error)
}
