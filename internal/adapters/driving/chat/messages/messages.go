// Package messages defines Bubbletea message types for the chat shell.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

// FragmentReceived carries one streamed fragment of the response
// being generated.
type FragmentReceived struct {
	Text string
}

// ResponseCompleted signals the query pipeline reached a terminal
// state. Result may be nil when Err is set.
type ResponseCompleted struct {
	Result *domain.QueryResult
	Err    error
}

// StatsLoaded carries engine statistics for the /stats command.
type StatsLoaded struct {
	Stats *domain.EngineStats
	Err   error
}

// DocumentsLoaded carries the document catalogue for the /docs command.
type DocumentsLoaded struct {
	Documents []driving.DocumentSummary
	Err       error
}

// MemoryCleared signals the /clear command finished.
type MemoryCleared struct {
	SessionID string
	Err       error
}

// SettingsLoaded carries the application settings for the /model command.
type SettingsLoaded struct {
	Settings *domain.AppSettings
	Err      error
}
