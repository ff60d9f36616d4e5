package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model presets",
	Long: `Lists the built-in model presets or switches the active models.

Presets bundle a generation and an embedding model at different
size/quality trade-offs and assume a local Ollama instance.`,
	RunE: runModelsList,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available model presets",
	RunE:  runModelsList,
}

var modelsUseCmd = &cobra.Command{
	Use:   "use [preset]",
	Short: "Switch to a model preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsUse,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsUseCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModelsList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	presets := domain.ModelPresets()

	cmd.Println("Model presets:")
	cmd.Println()
	for _, name := range domain.PresetNames() {
		preset := presets[name]

		marker := " "
		if settings.LLM.Model == preset.LLMModel && settings.Embedding.Model == preset.EmbeddingModel {
			marker = "*"
		}

		cmd.Printf("%s %-8s %s\n", marker, preset.Name, preset.Description)
		cmd.Printf("           LLM: %s, embedding: %s\n", preset.LLMModel, preset.EmbeddingModel)
	}

	cmd.Printf("\nCurrent models: %s / %s\n", settings.LLM.Model, settings.Embedding.Model)
	return nil
}

func runModelsUse(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	name := args[0]
	if err := settingsService.ApplyPreset(name); err != nil {
		return fmt.Errorf("failed to apply preset: %w", err)
	}

	preset := domain.ModelPresets()[name]
	cmd.Printf("Switched to preset %s: %s / %s\n", preset.Name, preset.LLMModel, preset.EmbeddingModel)
	cmd.Println("The new models apply the next time conversa starts.")
	return nil
}
