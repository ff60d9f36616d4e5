// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// FragmentFunc receives one generated text fragment. Returning an
// error stops generation; the adapter must abandon the stream and
// return the error.
type FragmentFunc func(fragment string) error

// GenerationService produces text from an augmented prompt.
//
// Implementations may include:
//   - Ollama (local models, token-level streaming)
//   - OpenAI (chat completions, SSE streaming)
//   - Anthropic (messages API)
type GenerationService interface {
	// Generate produces a completion for the prompt, invoking deliver
	// for each text fragment as it arrives. deliver may be nil when
	// the caller only wants the final text. The full response is
	// returned once generation finishes.
	//
	// Cancellation of ctx must stop the stream within a bounded grace
	// period; adapters check ctx between fragments.
	Generate(ctx context.Context, prompt string, opts GenerateOptions, deliver FragmentFunc) (string, error)

	// ModelName returns the name of the generation model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
