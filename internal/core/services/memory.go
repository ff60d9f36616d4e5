package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// Ensure MemoryService implements the interface.
var _ driving.MemoryService = (*MemoryService)(nil)

// SessionMemory holds the bounded short-term conversation window for
// each session. Windows live for the process lifetime; the optional
// transcript store receives a durable copy of every turn but is never
// read back into a window.
type SessionMemory struct {
	maxTurns   int
	transcript driven.TranscriptStore

	// mu guards the session map only. Each session carries its own
	// lock so sessions never block one another.
	mu       sync.Mutex
	sessions map[string]*sessionBuffer
}

// sessionBuffer is one session's short-term window.
type sessionBuffer struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// NewSessionMemory creates session memory holding up to maxTurns
// turns per session. The transcript store is optional.
func NewSessionMemory(maxTurns int, transcript driven.TranscriptStore) *SessionMemory {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMemoryTurns
	}
	return &SessionMemory{
		maxTurns:   maxTurns,
		transcript: transcript,
		sessions:   make(map[string]*sessionBuffer),
	}
}

// buffer returns the session's window, creating it on first use.
func (m *SessionMemory) buffer(sessionID string) *sessionBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.sessions[sessionID]
	if !ok {
		buf = &sessionBuffer{}
		m.sessions[sessionID] = buf
	}
	return buf
}

// Append records a turn in the session's window, evicting the oldest
// turn beyond capacity, and mirrors it to the transcript when one is
// configured. The per-session lock keeps turns in call order. A
// transcript failure is reported but never blocks the window update:
// the transcript is an audit trail, not working memory.
func (m *SessionMemory) Append(ctx context.Context, sessionID string, turn domain.Turn) {
	buf := m.buffer(sessionID)
	buf.mu.Lock()
	defer buf.mu.Unlock()

	buf.turns = append(buf.turns, turn)
	if len(buf.turns) > m.maxTurns {
		buf.turns = buf.turns[len(buf.turns)-m.maxTurns:]
	}

	if m.transcript != nil {
		if err := m.transcript.Append(ctx, sessionID, turn); err != nil {
			logger.Warn("Transcript append failed for session %s: %v", sessionID, err)
		}
	}
}

// Context returns a copy of the session's window, oldest first.
func (m *SessionMemory) Context(sessionID string) []domain.Turn {
	buf := m.buffer(sessionID)
	buf.mu.Lock()
	defer buf.mu.Unlock()

	out := make([]domain.Turn, len(buf.turns))
	copy(out, buf.turns)
	return out
}

// Clear empties the session's window. The transcript is untouched.
func (m *SessionMemory) Clear(sessionID string) {
	buf := m.buffer(sessionID)
	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.turns = nil
}

// Sessions lists sessions with a live window, sorted by ID.
func (m *SessionMemory) Sessions() []domain.SessionInfo {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	sort.Strings(ids)

	infos := make([]domain.SessionInfo, 0, len(ids))
	for _, id := range ids {
		buf := m.buffer(id)
		buf.mu.Lock()
		n := len(buf.turns)
		buf.mu.Unlock()
		infos = append(infos, domain.SessionInfo{ID: id, Turns: n})
	}
	return infos
}

// MemoryService exposes conversational memory management.
type MemoryService struct {
	memory     *SessionMemory
	transcript driven.TranscriptStore
}

// NewMemoryService creates a memory service over the shared session
// memory. The transcript store is optional and must be the same one
// the session memory mirrors to.
func NewMemoryService(memory *SessionMemory, transcript driven.TranscriptStore) *MemoryService {
	return &MemoryService{
		memory:     memory,
		transcript: transcript,
	}
}

// History returns the short-term window for a session, oldest first.
func (s *MemoryService) History(_ context.Context, sessionID string) ([]domain.Turn, error) {
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}
	return s.memory.Context(sessionID), nil
}

// Transcript returns every turn recorded for a session.
func (s *MemoryService) Transcript(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}
	if s.transcript == nil {
		return nil, fmt.Errorf("%w: long-term memory is disabled", domain.ErrSessionNotFound)
	}

	turns, err := s.transcript.Read(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reading transcript for session %s: %w", sessionID, err)
	}
	return turns, nil
}

// Clear empties the session's short-term window.
func (s *MemoryService) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}
	s.memory.Clear(sessionID)
	logger.Info("Cleared short-term memory for session %s", sessionID)
	return nil
}

// Sessions lists known sessions: those with a live window and those
// with a recorded transcript, merged by ID.
func (s *MemoryService) Sessions(ctx context.Context) ([]domain.SessionInfo, error) {
	recorded := make(map[string]int)
	if s.transcript != nil {
		ids, err := s.transcript.Sessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing transcript sessions: %w", err)
		}
		for _, id := range ids {
			turns, err := s.transcript.Read(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("reading transcript for session %s: %w", id, err)
			}
			recorded[id] = len(turns)
		}
	}

	infos := s.memory.Sessions()
	live := make(map[string]bool, len(infos))
	for i := range infos {
		infos[i].Recorded = recorded[infos[i].ID]
		live[infos[i].ID] = true
	}
	for id, n := range recorded {
		if !live[id] {
			infos = append(infos, domain.SessionInfo{ID: id, Recorded: n})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}
