package chat

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

// entryRole identifies who produced a transcript entry.
type entryRole int

const (
	// roleUser marks a question typed by the user.
	roleUser entryRole = iota
	// roleAssistant marks a generated response.
	roleAssistant
	// roleContext marks the retrieved-context block under a response.
	roleContext
	// roleNotice marks command output and shell notices.
	roleNotice
)

// entry is one block in the conversation transcript.
type entry struct {
	role entryRole
	text string
}

// wrapToWidth splits text into lines no wider than width. Long words
// are broken rather than overflowed so the viewport never scrolls
// horizontally.
func wrapToWidth(text string, width int) []string {
	if width < 20 {
		width = 20
	}

	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))

	for _, line := range rawLines {
		if len(line) <= width {
			lines = append(lines, line)
			continue
		}
		for len(line) > width {
			lines = append(lines, line[:width])
			line = line[width:]
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// formatStats renders engine statistics for the transcript.
func formatStats(stats *domain.EngineStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Documents: %d\n", stats.DocumentCount)
	fmt.Fprintf(&b, "Index entries: %d (%d dimensions)\n", stats.ChunkCount, stats.IndexDimensions)
	fmt.Fprintf(&b, "Models: %s / %s\n", stats.ActiveModel, stats.EmbeddingModel)
	fmt.Fprintf(&b, "Live sessions: %d", stats.Sessions)
	return b.String()
}

// formatDocuments renders the catalogue listing for the transcript.
func formatDocuments(docs []driving.DocumentSummary) string {
	if len(docs) == 0 {
		return "No documents ingested yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d documents in the catalogue:", len(docs))
	for _, doc := range docs {
		title := doc.Title
		if title == "" {
			title = doc.ID
		}
		fmt.Fprintf(&b, "\n  %s (%d chunks)", title, doc.ChunkCount)
	}
	return b.String()
}

// formatModels renders the active model configuration.
func formatModels(settings *domain.AppSettings) string {
	return fmt.Sprintf("Generation: %s/%s\nEmbedding: %s/%s",
		settings.LLM.Provider, settings.LLM.Model,
		settings.Embedding.Provider, settings.Embedding.Model)
}

// formatContext renders the retrieved chunks shown under a response.
func formatContext(retrieved []domain.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Context:")
	for i, scored := range retrieved {
		fmt.Fprintf(&b, "\n  [%d] document %s, chunk %d (distance %.4f)",
			i+1, scored.Chunk.DocumentID, scored.Chunk.Position, scored.Distance)
	}
	return b.String()
}
