package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engine statistics",
	Long:  `Shows document and index counters plus the active models.`,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	stats, err := ragService.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println("Engine Statistics")
	cmd.Println("=================")
	cmd.Println()
	cmd.Printf("  Documents:        %d\n", stats.DocumentCount)
	cmd.Printf("  Index entries:    %d\n", stats.ChunkCount)
	cmd.Printf("  Dimensions:       %d\n", stats.IndexDimensions)
	cmd.Printf("  Generation model: %s\n", stats.ActiveModel)
	cmd.Printf("  Embedding model:  %s\n", stats.EmbeddingModel)
	cmd.Printf("  Live sessions:    %d\n", stats.Sessions)

	return nil
}
