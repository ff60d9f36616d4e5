// Package cli implements the command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Services are injected by main before Execute. Commands check for nil
// so a partially configured binary still runs the commands it can.
var (
	ragService      driving.RAGService
	catalogService  driving.CatalogService
	memoryService   driving.MemoryService
	settingsService driving.SettingsService
)

// verbose enables diagnostic logging for all commands.
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "conversa",
	Short: "Chat with your documents using local or cloud models",
	Long: `Conversa is a retrieval-augmented generation engine for the terminal.

Ingest text documents into a local vector index, then ask questions:
answers are generated from the most relevant passages plus recent
conversation history. Runs fully offline against a local Ollama
instance, or against OpenAI and Anthropic with API keys.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose diagnostic output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetRAGService injects the engine used by ingest, query, chat, stats
// and compact.
func SetRAGService(s driving.RAGService) {
	ragService = s
}

// SetCatalogService injects the document catalogue service.
func SetCatalogService(s driving.CatalogService) {
	catalogService = s
}

// SetMemoryService injects the conversation memory service.
func SetMemoryService(s driving.MemoryService) {
	memoryService = s
}

// SetSettingsService injects the settings service.
func SetSettingsService(s driving.SettingsService) {
	settingsService = s
}
