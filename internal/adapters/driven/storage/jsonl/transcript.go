// Package jsonl provides the append-only conversation transcript
// store. Each session is one line-delimited JSON file under the
// conversations directory, one turn per line, so transcripts stay
// greppable and survive crashes mid-write with at most one torn line.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// maxLineSize bounds a single transcript line when reading back.
const maxLineSize = 1 << 20

// transcriptExt is the file extension for session transcripts.
const transcriptExt = ".jsonl"

// Ensure Store implements the interface.
var _ driven.TranscriptStore = (*Store)(nil)

// Store records conversation turns as line-delimited JSON, one file
// per session.
type Store struct {
	dir string

	// mu serialises file access so concurrent appends cannot
	// interleave partial lines.
	mu sync.Mutex
}

// NewStore creates a transcript store rooted at dir, creating the
// directory if needed. An empty dir defaults to
// ~/.conversa/conversations.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".conversa", "conversations")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating transcript directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// sessionFile maps a session ID to its transcript path. IDs that
// would escape the directory are rejected.
func (s *Store) sessionFile(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, "/\\") || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("%w: invalid session ID %q", domain.ErrInvalidInput, sessionID)
	}
	return filepath.Join(s.dir, sessionID+transcriptExt), nil
}

// Append writes one turn to the session's transcript file, creating
// the file on first use.
func (s *Store) Append(_ context.Context, sessionID string, turn domain.Turn) error {
	path, err := s.sessionFile(sessionID)
	if err != nil {
		return err
	}

	line, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening transcript for session %s: %w", sessionID, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("appending to transcript for session %s: %w", sessionID, err)
	}
	return f.Close()
}

// Read returns every turn recorded for a session, oldest first.
// A session with no transcript file reports ErrSessionNotFound.
// Malformed lines are skipped with a warning so a torn write cannot
// poison the rest of the history.
func (s *Store) Read(_ context.Context, sessionID string) ([]domain.Turn, error) {
	path, err := s.sessionFile(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("opening transcript for session %s: %w", sessionID, err)
	}
	defer f.Close()

	var turns []domain.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var turn domain.Turn
		if err := json.Unmarshal([]byte(line), &turn); err != nil {
			logger.Warn("Skipping malformed transcript line %d for session %s: %v", lineNo, sessionID, err)
			continue
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript for session %s: %w", sessionID, err)
	}
	return turns, nil
}

// Sessions lists session IDs that have a transcript file, sorted.
func (s *Store) Sessions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing transcript directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), transcriptExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), transcriptExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op; files are opened per operation.
func (s *Store) Close() error {
	return nil
}

// Path returns the transcript directory.
func (s *Store) Path() string {
	return s.dir
}
