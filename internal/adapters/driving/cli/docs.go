package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/conversa-cli/internal/core/ports/driving"
)

var (
	docsJSON    bool
	docsContent bool
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the document catalogue",
	Long:  `List, inspect or remove ingested documents.`,
	RunE:  runDocsList,
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued documents",
	RunE:  runDocsList,
}

var docsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsShow,
}

var docsRmCmd = &cobra.Command{
	Use:   "rm [doc-id]",
	Short: "Remove a document from the index",
	Long: `Deletes the document from the catalogue and rebuilds the vector
index without its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocsRm,
}

func init() {
	docsListCmd.Flags().BoolVar(&docsJSON, "json", false, "output documents as JSON")
	docsShowCmd.Flags().BoolVar(&docsContent, "content", false, "print the full document text")

	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
	docsCmd.AddCommand(docsRmCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsList(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	docs, err := catalogService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if docsJSON {
		return outputDocsJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested yet.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title:  %s\n", docs[i].Title)
		if docs[i].URI != "" {
			cmd.Printf("    URI:    %s\n", docs[i].URI)
		}
		cmd.Printf("    Chunks: %d\n", docs[i].ChunkCount)
		cmd.Printf("    Added:  %s\n", docs[i].CreatedAt.Format("2006-01-02 15:04:05"))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	doc, err := catalogService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  URI:      %s\n", doc.URI)
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %s\n", k, v)
		}
	}

	if docsContent {
		cmd.Println()
		cmd.Println(doc.Content)
	}

	return nil
}

func runDocsRm(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	removed, err := catalogService.Remove(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Document %s removed (%d index entries dropped).\n", args[0], removed)
	return nil
}

func outputDocsJSON(cmd *cobra.Command, docs []driving.DocumentSummary) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
