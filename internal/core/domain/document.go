package domain

import "time"

// Document represents a unit of ingested text with metadata.
// It is the form a source takes before chunking.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path, "inline" for raw text).
	URI string

	// Title is the human-readable title, usually the file name.
	Title string

	// Content is the full raw text before chunking.
	Content string

	// Metadata contains caller-supplied key-value pairs.
	// Values are scalars; chunks inherit these pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// Chunk represents a retrievable unit within a document.
// Documents are split into overlapping chunks so that retrieval
// returns passages rather than whole files.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	// Consecutive positions may share overlapping text.
	Position int

	// Embedding is the vector representation used for retrieval.
	Embedding []float32

	// Metadata contains pairs inherited from the parent document
	// plus chunk-local additions.
	Metadata map[string]any
}

// ScoredChunk pairs a chunk with its distance to a query embedding.
// Lower distance means a closer match.
type ScoredChunk struct {
	// Chunk is the retrieved chunk without its embedding.
	Chunk Chunk

	// Distance is the metric distance to the query vector.
	Distance float32
}
