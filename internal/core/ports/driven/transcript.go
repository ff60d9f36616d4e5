package driven

import (
	"context"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// TranscriptStore is the append-only long-term conversation log.
// It is an audit trail, not working memory: clearing a session's
// short-term buffer never touches the transcript, and query-time
// correctness never depends on it.
type TranscriptStore interface {
	// Append writes one turn to the session's transcript.
	// Records are line-delimited JSON, appended in call order.
	Append(ctx context.Context, sessionID string, turn domain.Turn) error

	// Read returns every recorded turn for a session, oldest first.
	Read(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Sessions lists session IDs that have a transcript.
	Sessions(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}
