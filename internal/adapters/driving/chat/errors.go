package chat

import "errors"

// ErrMissingRAGService is returned when the rag service is not provided.
var ErrMissingRAGService = errors.New("chat: rag service is required")
