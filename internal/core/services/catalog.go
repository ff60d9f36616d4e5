package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogService exposes the document catalogue and keeps it in step
// with the vector index when documents are removed.
type CatalogService struct {
	docStore driven.DocumentStore
	index    driven.VectorIndex
}

// NewCatalogService creates the catalogue service.
func NewCatalogService(docStore driven.DocumentStore, index driven.VectorIndex) *CatalogService {
	return &CatalogService{
		docStore: docStore,
		index:    index,
	}
}

// List returns all catalogued documents, newest first. Content is
// omitted from listings.
func (s *CatalogService) List(ctx context.Context) ([]driving.DocumentSummary, error) {
	records, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	summaries := make([]driving.DocumentSummary, 0, len(records))
	for i := range records {
		summary := toSummary(&records[i])
		summary.Content = ""
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Get retrieves one document with its full content.
func (s *CatalogService) Get(ctx context.Context, documentID string) (*driving.DocumentSummary, error) {
	record, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", documentID, err)
	}

	summary := toSummary(record)
	return &summary, nil
}

// Remove deletes a document from the catalogue and rebuilds the index
// without its chunks. The index is purged first so a failure midway
// leaves a catalogue entry that a retry can still resolve.
func (s *CatalogService) Remove(ctx context.Context, documentID string) (int, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return 0, fmt.Errorf("getting document %s: %w", documentID, err)
	}

	removed, err := s.index.RemoveByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("removing chunks of document %s: %w", documentID, err)
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return removed, fmt.Errorf("deleting document %s: %w", documentID, err)
	}

	logger.Info("Removed document %s (%d chunks)", documentID, removed)
	return removed, nil
}

// toSummary converts a catalogue record to its display form,
// flattening metadata values to strings.
func toSummary(record *driven.DocumentRecord) driving.DocumentSummary {
	doc := record.Document

	var metadata map[string]string
	if len(doc.Metadata) > 0 {
		metadata = make(map[string]string, len(doc.Metadata))
		for key, value := range doc.Metadata {
			metadata[key] = fmt.Sprint(value)
		}
	}

	return driving.DocumentSummary{
		ID:         doc.ID,
		Title:      doc.Title,
		URI:        doc.URI,
		Content:    doc.Content,
		ChunkCount: record.ChunkCount,
		Metadata:   metadata,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}
