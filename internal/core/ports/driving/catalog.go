package driving

import (
	"context"
	"time"
)

// CatalogService manages the catalogue of ingested documents.
type CatalogService interface {
	// List returns all catalogued documents, newest first.
	List(ctx context.Context) ([]DocumentSummary, error)

	// Get retrieves one document with its full content.
	Get(ctx context.Context, documentID string) (*DocumentSummary, error)

	// Remove deletes a document from the catalogue and rebuilds the
	// vector index without its chunks. Returns the number of index
	// entries removed.
	Remove(ctx context.Context, documentID string) (int, error)
}

// DocumentSummary is a catalogue view of an ingested document.
type DocumentSummary struct {
	// ID is the unique document identifier.
	ID string

	// Title is the document title.
	Title string

	// URI is the original location (file path, or "inline" for text
	// ingested directly).
	URI string

	// Content is the full document text. Empty in listings.
	Content string

	// ChunkCount is the number of chunks the document produced.
	ChunkCount int

	// Metadata contains flattened key-value pairs for display.
	Metadata map[string]string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}
