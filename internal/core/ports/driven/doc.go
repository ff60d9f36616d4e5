// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - EmbeddingService: Turns text into fixed-dimension vectors
//   - GenerationService: Turns an augmented prompt into streamed text
//   - VectorIndex: Durable embedding + payload store with similarity search
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - TranscriptStore: Append-only long-term conversation log. Without it,
//     only bounded short-term memory is kept.
//   - DocumentStore: Document catalog. Without it, document listings and
//     document counts are unavailable.
//   - PromptStore: Editable system prompts. Without it, built-in defaults
//     are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
