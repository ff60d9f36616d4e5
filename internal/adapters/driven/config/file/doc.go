// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem under ~/.conversa.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable system prompt files
package file
