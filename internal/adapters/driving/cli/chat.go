package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/conversa-cli/internal/adapters/driving/chat"
)

var (
	chatSession   string
	chatTopK      int
	chatNoMemory  bool
	chatShowChunk bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Launches the interactive chat shell. Each message runs the full
retrieval pipeline and the answer streams into the transcript.

Slash commands:
  /help   - Show available commands
  /clear  - Clear this session's short-term memory
  /stats  - Show engine statistics
  /docs   - List ingested documents
  /model  - Show or switch the model preset
  /quit   - Exit the chat

Esc cancels a response that is still being generated.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "conversation session to use")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "number of chunks to retrieve per message")
	chatCmd.Flags().BoolVar(&chatNoMemory, "no-history", false, "leave conversation history out of prompts")
	chatCmd.Flags().BoolVar(&chatShowChunk, "show-context", false, "show retrieved chunks above each answer")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	// Panic recovery keeps stack traces visible when the terminal UI
	// would swallow them
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in chat: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	ports := &chat.Ports{
		RAG:      ragService,
		Catalog:  catalogService,
		Memory:   memoryService,
		Settings: settingsService,
	}

	app, err := chat.NewApp(ports, chat.Options{
		SessionID:   chatSession,
		TopK:        chatTopK,
		NoHistory:   chatNoMemory,
		ShowContext: chatShowChunk,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}

	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat error: %w", err)
	}

	return nil
}
