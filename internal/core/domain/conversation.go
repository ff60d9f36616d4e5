package domain

import "time"

// DefaultSessionID is the session used when the caller does not name one.
const DefaultSessionID = "default"

// DefaultMemoryTurns is the short-term buffer capacity per session.
const DefaultMemoryTurns = 10

// Turn is one completed query/response exchange.
// Turns are only recorded for queries that reach COMPLETE.
type Turn struct {
	// Query is the user's query text.
	Query string `json:"query_text"`

	// Response is the cleaned assistant response.
	Response string `json:"response_text"`

	// Timestamp is when the turn completed.
	Timestamp time.Time `json:"timestamp"`
}

// SessionInfo describes a conversation session.
type SessionInfo struct {
	// ID is the session identifier.
	ID string

	// Turns is the number of turns currently held in short-term
	// memory for the session.
	Turns int

	// Recorded is the number of turns in the session's long-term
	// transcript, if one is kept.
	Recorded int
}
