package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var compactThreshold float32

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Remove near-duplicate index entries",
	Long: `Rebuilds the vector index without near-duplicate entries. Two
entries are duplicates when their distance is within the threshold;
the earliest entry of each group is kept.

The default threshold of 0 removes exact duplicates only.`,
	RunE: runCompact,
}

func init() {
	compactCmd.Flags().Float32VarP(&compactThreshold, "threshold", "t", 0, "distance below which entries count as duplicates")
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	removed, err := ragService.Compact(context.Background(), compactThreshold)
	if err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}

	if removed == 0 {
		cmd.Println("No duplicate entries found.")
		return nil
	}

	cmd.Printf("Removed %d duplicate entries.\n", removed)
	return nil
}
