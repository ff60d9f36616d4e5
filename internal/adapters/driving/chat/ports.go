// Package chat provides the interactive conversation shell for conversa.
// It implements a driving adapter following hexagonal architecture principles.
package chat

import (
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the shell.
// This provides a single injection point for dependency injection.
type Ports struct {
	// RAG runs queries and reports engine statistics.
	RAG driving.RAGService

	// Catalog lists ingested documents for the /docs command.
	Catalog driving.CatalogService

	// Memory manages session memory for the /clear command.
	Memory driving.MemoryService

	// Settings exposes the model configuration for the /model command.
	Settings driving.SettingsService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(
	rag driving.RAGService,
	catalog driving.CatalogService,
	memory driving.MemoryService,
	settings driving.SettingsService,
) *Ports {
	return &Ports{
		RAG:      rag,
		Catalog:  catalog,
		Memory:   memory,
		Settings: settings,
	}
}

// Validate ensures all required ports are set.
// Only the RAG service is required; the slash commands backed by the
// other services degrade to a notice when their service is missing.
func (p *Ports) Validate() error {
	if p.RAG == nil {
		return ErrMissingRAGService
	}
	return nil
}
