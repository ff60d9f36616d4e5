package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

var (
	memorySession    string
	memoryTranscript bool
	memoryJSON       bool
	memoryOutput     string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage conversation memory",
	Long: `Shows the conversation memory for a session.

By default the short-term window is shown: the recent turns that are
fed back into prompts. With --transcript the full long-term log is
shown instead, when transcript recording is enabled.`,
	RunE: runMemoryShow,
}

var memorySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List conversation sessions",
	RunE:  runMemorySessions,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear [session]",
	Short: "Clear a session's short-term memory",
	Long: `Empties the short-term window for a session so following queries
start from a clean prompt. The long-term transcript is untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMemoryClear,
}

var memoryExportCmd = &cobra.Command{
	Use:   "export [session]",
	Short: "Export a session transcript as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMemoryExport,
}

func init() {
	memoryCmd.Flags().StringVarP(&memorySession, "session", "s", "", "conversation session to show")
	memoryCmd.Flags().BoolVar(&memoryTranscript, "transcript", false, "show the long-term transcript instead of the short-term window")
	memoryCmd.Flags().BoolVar(&memoryJSON, "json", false, "output turns as JSON")
	memoryExportCmd.Flags().StringVarP(&memoryOutput, "output", "o", "", "write to a file instead of stdout")

	memoryCmd.AddCommand(memorySessionsCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	memoryCmd.AddCommand(memoryExportCmd)
	rootCmd.AddCommand(memoryCmd)
}

func runMemoryShow(cmd *cobra.Command, _ []string) error {
	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	sessionID := memorySession
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}

	ctx := context.Background()

	var turns []domain.Turn
	var err error
	if memoryTranscript {
		turns, err = memoryService.Transcript(ctx, sessionID)
	} else {
		turns, err = memoryService.History(ctx, sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to read memory: %w", err)
	}

	if memoryJSON {
		return outputTurnsJSON(cmd, turns)
	}

	if len(turns) == 0 {
		cmd.Printf("No turns recorded for session %s.\n", sessionID)
		return nil
	}

	kind := "short-term window"
	if memoryTranscript {
		kind = "transcript"
	}
	cmd.Printf("Session %s (%s): %d turns\n\n", sessionID, kind, len(turns))

	for i := range turns {
		cmd.Printf("[%d] %s\n", i+1, turns[i].Timestamp.Format("2006-01-02 15:04:05"))
		cmd.Printf("  Q: %s\n", turns[i].Query)
		cmd.Printf("  A: %s\n", turns[i].Response)
		cmd.Println()
	}

	return nil
}

func runMemorySessions(cmd *cobra.Command, _ []string) error {
	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	sessions, err := memoryService.Sessions(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		cmd.Println("No sessions yet.")
		return nil
	}

	cmd.Println("Sessions:")
	cmd.Println()
	for _, session := range sessions {
		cmd.Printf("  %-20s %d turns", session.ID, session.Turns)
		if session.Recorded > 0 {
			cmd.Printf(" (%d recorded)", session.Recorded)
		}
		cmd.Println()
	}
	cmd.Printf("\nTotal: %d sessions\n", len(sessions))

	return nil
}

func runMemoryClear(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	sessionID := domain.DefaultSessionID
	if len(args) > 0 {
		sessionID = args[0]
	}

	if err := memoryService.Clear(context.Background(), sessionID); err != nil {
		return fmt.Errorf("failed to clear memory: %w", err)
	}

	cmd.Printf("Short-term memory cleared for session %s.\n", sessionID)
	return nil
}

func runMemoryExport(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	sessionID := domain.DefaultSessionID
	if len(args) > 0 {
		sessionID = args[0]
	}

	turns, err := memoryService.Transcript(context.Background(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if memoryOutput == "" {
		cmd.Println(string(data))
		return nil
	}

	if err := os.WriteFile(memoryOutput, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", memoryOutput, err)
	}
	cmd.Printf("Exported %d turns to %s.\n", len(turns), memoryOutput)
	return nil
}

func outputTurnsJSON(cmd *cobra.Command, turns []domain.Turn) error {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal turns: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
