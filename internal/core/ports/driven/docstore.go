package driven

import (
	"context"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// DocumentStore catalogues ingested documents.
// Backed by SQLite for metadata storage. Chunk payloads live in the
// vector index's payload store, not here.
type DocumentStore interface {
	// SaveDocument stores or updates a document record.
	SaveDocument(ctx context.Context, doc *domain.Document, chunkCount int) error

	// GetDocument retrieves a document record by ID.
	GetDocument(ctx context.Context, id string) (*DocumentRecord, error)

	// ListDocuments returns all catalogued documents, newest first.
	ListDocuments(ctx context.Context) ([]DocumentRecord, error)

	// DeleteDocument removes a document record.
	DeleteDocument(ctx context.Context, id string) error

	// CountDocuments returns the number of catalogued documents.
	CountDocuments(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// DocumentRecord pairs a catalogued document with its chunk count.
type DocumentRecord struct {
	// Document is the catalogued document (content may be empty for
	// listings).
	Document domain.Document

	// ChunkCount is the number of chunks the document produced at
	// ingest time.
	ChunkCount int
}
