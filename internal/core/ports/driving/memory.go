package driving

import (
	"context"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// MemoryService manages conversational memory across sessions.
type MemoryService interface {
	// History returns the short-term window for a session, oldest
	// first. An unknown session yields an empty history.
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Transcript returns every turn recorded in the session's
	// long-term log, oldest first.
	Transcript(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Clear empties the short-term window for a session. The
	// long-term transcript is untouched.
	Clear(ctx context.Context, sessionID string) error

	// Sessions lists known sessions with their turn counts.
	Sessions(ctx context.Context) ([]domain.SessionInfo, error)
}
