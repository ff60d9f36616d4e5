// Package main assembles the conversa binary: driven adapters first,
// core services over them, then the CLI. Adapters that fail to
// initialise fall back to in-memory stores or leave their service
// unset so the remaining commands keep working.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/conversa-cli/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/conversa-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/conversa-cli/internal/adapters/driven/index/flat"
	"github.com/custodia-labs/conversa-cli/internal/adapters/driven/storage/jsonl"
	memstore "github.com/custodia-labs/conversa-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/conversa-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/conversa-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/conversa-cli/internal/chunker"
	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/conversa-cli/internal/core/services"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	// A broken config file should not take the whole engine down. The
	// in-memory store runs on defaults and forgets changes on exit.
	var configStore driven.ConfigStore
	if store, err := configfile.NewConfigStore(dataDir); err != nil {
		logger.Warn("Config file unavailable, settings are session-only: %v", err)
		configStore = memstore.NewConfigStore()
	} else {
		configStore = store
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	aiResult := ai.Initialise(settings)
	defer aiResult.Close()
	for _, warning := range aiResult.Warnings {
		logger.Warn("%s", warning)
	}

	// Vector index. The dimension comes from the live embedding
	// service when one is reachable, otherwise from the known-model
	// table. With neither the index stays closed and the engine
	// commands explain what to configure.
	var index driven.VectorIndex
	if dims := resolveDimensions(settings, aiResult.EmbeddingService); dims > 0 {
		idx, err := flat.New(filepath.Join(dataDir, "index"), dims, settings.Engine.Metric)
		if err != nil {
			logger.Warn("Vector index unavailable: %v", err)
		} else {
			defer idx.Close()
			index = idx
		}
	} else {
		logger.Warn("Vector index unavailable: unknown embedding dimension for model %q",
			settings.Embedding.Model)
	}

	// Document catalogue. When the database cannot be opened the
	// catalogue degrades to a session-only in-memory store.
	var docStore driven.DocumentStore
	if store, err := sqlite.NewStore(dataDir); err != nil {
		logger.Warn("Document catalogue unavailable, keeping records in memory: %v", err)
		docStore = memstore.NewDocumentStore()
	} else {
		defer store.Close()
		docStore = store.DocumentStore()
	}

	// Long-term conversation memory is optional; without it sessions
	// are forgotten when the process exits.
	var transcript driven.TranscriptStore
	if settings.Engine.LongTermMemory {
		store, err := jsonl.NewStore(filepath.Join(dataDir, "conversations"))
		if err != nil {
			logger.Warn("Conversation transcripts unavailable: %v", err)
		} else {
			defer store.Close()
			transcript = store
		}
	}

	prompts := services.NewPromptBuilder()
	if store, err := configfile.NewPromptStore(filepath.Join(dataDir, "prompts")); err != nil {
		logger.Warn("Custom prompts unavailable, using built-ins: %v", err)
	} else {
		prompts.SetPromptStore(store)
	}

	memory := services.NewSessionMemory(settings.Engine.MemoryTurns, transcript)

	cli.SetVersion(version)
	cli.SetSettingsService(settingsService)
	cli.SetMemoryService(services.NewMemoryService(memory, transcript))

	if index != nil {
		splitter := chunker.New(
			chunker.WithChunkSize(settings.Engine.ChunkSize),
			chunker.WithOverlap(settings.Engine.ChunkOverlap),
		)
		genOpts := driven.GenerateOptions{
			MaxTokens:   settings.LLM.MaxTokens,
			Temperature: settings.LLM.Temperature,
		}
		cli.SetRAGService(services.NewRAGService(
			aiResult.EmbeddingService,
			aiResult.GenerationService,
			index,
			docStore,
			splitter,
			prompts,
			memory,
			settings.Engine,
			genOpts,
		))
		cli.SetCatalogService(services.NewCatalogService(docStore, index))
	}

	return cli.Execute()
}

// resolveDataDir locates the conversa home directory. CONVERSA_HOME
// overrides the default ~/.conversa.
func resolveDataDir() (string, error) {
	if dir := os.Getenv("CONVERSA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".conversa"), nil
}

// resolveDimensions determines the vector dimension the index must be
// opened with. Zero means the dimension could not be determined.
func resolveDimensions(settings *domain.AppSettings, embedding driven.EmbeddingService) int {
	if embedding != nil {
		return embedding.Dimensions()
	}
	return domain.EmbeddingDimensions()[settings.Embedding.Model]
}
