package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

var (
	queryTopK     int
	queryFilters  []string
	querySession  string
	queryNoMemory bool
	queryJSON     bool
	queryContext  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a single question against the index",
	Long: `Runs one retrieval-augmented query: embeds the question, retrieves
the closest chunks from the vector index and generates an answer
grounded in them plus recent conversation history.

The answer streams to the terminal as it is generated. Press Ctrl-C to
cancel; a cancelled query is not recorded in conversation memory.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (0 uses the configured default)")
	queryCmd.Flags().StringArrayVarP(&queryFilters, "filter", "f", nil, "metadata filter as key=value (repeatable, all must match)")
	queryCmd.Flags().StringVarP(&querySession, "session", "s", "", "conversation session to use")
	queryCmd.Flags().BoolVar(&queryNoMemory, "no-history", false, "leave conversation history out of the prompt")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the full result as JSON")
	queryCmd.Flags().BoolVar(&queryContext, "show-context", false, "list the retrieved chunks after the answer")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	opts := domain.DefaultQueryOptions()
	if queryTopK > 0 {
		opts.TopK = queryTopK
	}
	if querySession != "" {
		opts.SessionID = querySession
	}
	opts.UseHistory = !queryNoMemory

	filter, err := parseKeyValues(queryFilters)
	if err != nil {
		return err
	}
	opts.Filter = filter

	// Ctrl-C cancels generation without recording the exchange
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if queryJSON {
		opts.Stream = false
		result, err := ragService.Query(ctx, args[0], opts)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return outputQueryJSON(cmd, result)
	}

	result, err := ragService.QueryStream(ctx, args[0], opts, func(fragment string) error {
		cmd.Print(fragment)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrQueryCancelled) {
			cmd.Println("\n(cancelled)")
			return nil
		}
		return fmt.Errorf("query failed: %w", err)
	}
	cmd.Println()

	if queryContext {
		outputRetrieved(cmd, result.Retrieved)
	}

	return nil
}

func outputQueryJSON(cmd *cobra.Command, result *domain.QueryResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputRetrieved(cmd *cobra.Command, retrieved []domain.ScoredChunk) {
	if len(retrieved) == 0 {
		cmd.Println("\nNo chunks were retrieved.")
		return
	}

	cmd.Println("\nRetrieved context:")
	for i := range retrieved {
		chunk := retrieved[i].Chunk
		cmd.Printf("  [%d] document %s, chunk %d (distance %.4f)\n",
			i+1, chunk.DocumentID, chunk.Position, retrieved[i].Distance)
		cmd.Printf("      %s\n", snippet(chunk.Content, 120))
	}
}

// parseKeyValues converts key=value pairs into a metadata map.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q: expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

// snippet collapses whitespace and shortens text to one display line.
func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
