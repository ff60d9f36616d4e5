package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// Ensure PromptBuilder can receive a prompt store.
var _ driven.PromptStoreAware = (*PromptBuilder)(nil)

// Built-in system prompts, used when no prompt store is configured or
// a prompt cannot be loaded.
const (
	fallbackRAGSystem = `You are a helpful assistant. Answer the user's question using the provided context. If the context does not contain the answer, say so honestly instead of guessing.`

	fallbackChatSystem = `You are a helpful assistant. Answer conversationally, using the previous conversation when it is relevant.`
)

// PromptBuilder assembles the augmented prompt handed to the
// generation model: system instruction, retrieved context in ranked
// order, recent conversation and the query itself.
type PromptBuilder struct {
	prompts driven.PromptStore
}

// NewPromptBuilder creates a prompt builder using built-in system
// prompts until a store is injected.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// SetPromptStore injects a store for user-customisable system
// prompts. Call before the builder is in use.
func (b *PromptBuilder) SetPromptStore(store driven.PromptStore) {
	b.prompts = store
}

// Build assembles the prompt. Retrieved chunks appear in ranked
// order; history oldest first. With no retrieved context the
// conversational system prompt is used instead of the grounded one.
func (b *PromptBuilder) Build(query string, retrieved []domain.ScoredChunk, history []domain.Turn) string {
	var sb strings.Builder

	if len(retrieved) > 0 {
		sb.WriteString(b.systemPrompt(driven.PromptRAGSystem, fallbackRAGSystem))
	} else {
		sb.WriteString(b.systemPrompt(driven.PromptChatSystem, fallbackChatSystem))
	}
	sb.WriteString("\n\n")

	if len(retrieved) > 0 {
		sb.WriteString("Context information:\n")
		for i, sc := range retrieved {
			fmt.Fprintf(&sb, "[Document %d]: %s\n", i+1, strings.TrimSpace(sc.Chunk.Content))
		}
		sb.WriteString("\n")
	}

	if len(history) > 0 {
		sb.WriteString("Previous conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turn.Query, turn.Response)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "User: %s\nAssistant:", query)
	return sb.String()
}

// systemPrompt loads a named prompt, falling back to the built-in
// text when no store is set or the load fails.
func (b *PromptBuilder) systemPrompt(name, fallback string) string {
	if b.prompts == nil {
		return fallback
	}

	text, err := b.prompts.Load(name)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Debug("Prompt %q unavailable (%v), using built-in default", name, err)
		return fallback
	}
	return text
}

// cleanResponse normalises raw model output before it is returned or
// recorded: whitespace is trimmed, an echoed role prefix is stripped
// and a hallucinated next user turn is cut off.
func cleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "Assistant:")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "User:") {
		return ""
	}
	if i := strings.Index(s, "\nUser:"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
