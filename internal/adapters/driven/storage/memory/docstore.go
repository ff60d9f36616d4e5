package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// It backs tests and sessions where the SQLite catalogue cannot be
// opened; records are forgotten when the process exits.
type DocumentStore struct {
	mu      sync.RWMutex
	records map[string]driven.DocumentRecord
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		records: make(map[string]driven.DocumentRecord),
	}
}

// SaveDocument stores or updates a document record.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document, chunkCount int) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[doc.ID] = driven.DocumentRecord{Document: *doc, ChunkCount: chunkCount}
	return nil
}

// GetDocument retrieves a document record by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*driven.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// ListDocuments returns all document records, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]driven.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]driven.DocumentRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Document, records[j].Document
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return records, nil
}

// DeleteDocument removes a document record. Unknown IDs are not an
// error.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// CountDocuments returns the number of stored records.
func (s *DocumentStore) CountDocuments(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Close is a no-op; the store lives in process memory.
func (s *DocumentStore) Close() error {
	return nil
}
