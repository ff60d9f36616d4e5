package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/logger"
	"github.com/custodia-labs/conversa-cli/internal/normalisers"
	"github.com/custodia-labs/conversa-cli/internal/normalisers/docx"
	"github.com/custodia-labs/conversa-cli/internal/normalisers/eml"
	"github.com/custodia-labs/conversa-cli/internal/normalisers/html"
	"github.com/custodia-labs/conversa-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/conversa-cli/internal/normalisers/plaintext"
)

var (
	ingestText  string
	ingestTitle string
	ingestMeta  []string
	ingestWatch bool
)

// formatRegistry dispatches files to the normaliser for their extension.
var formatRegistry = newFormatRegistry()

func newFormatRegistry() *normalisers.Registry {
	registry := normalisers.NewRegistry()
	registry.Register(plaintext.New())
	registry.Register(markdown.New())
	registry.Register(html.New())
	registry.Register(docx.New())
	registry.Register(eml.New())
	return registry
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest documents into the vector index",
	Long: `Chunks documents, embeds each chunk and commits the embeddings to
the local vector index.

Accepts files and directories; directories are walked recursively and
supported files are ingested: plain text, Markdown, HTML, Word (.docx)
and email (.eml). Raw text can be ingested directly with --text.
Re-ingesting a file replaces its previous chunks.

With --watch the given paths are monitored after the initial pass:
created and changed files are re-ingested, deleted files are dropped
from the index, until interrupted with Ctrl-C.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest the given text directly instead of reading files")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "title for --text ingestion")
	ingestCmd.Flags().StringArrayVarP(&ingestMeta, "meta", "m", nil, "document metadata as key=value (repeatable)")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the paths and re-ingest changed files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	meta, err := parseKeyValues(ingestMeta)
	if err != nil {
		return err
	}

	if ingestText != "" {
		if len(args) > 0 {
			return errors.New("cannot combine --text with paths")
		}
		if ingestWatch {
			return errors.New("--watch requires paths")
		}
		return ingestInline(cmd, ingestText, ingestTitle, meta)
	}

	if len(args) == 0 {
		return errors.New("nothing to ingest: provide file or directory paths, or --text")
	}

	ctx := context.Background()
	if err := ingestPaths(ctx, cmd, args, meta); err != nil {
		return err
	}

	if ingestWatch {
		return watchAndIngest(cmd, args, meta)
	}
	return nil
}

// ingestInline ingests raw text given on the command line.
func ingestInline(cmd *cobra.Command, text, title string, meta map[string]any) error {
	if title == "" {
		title = "inline text"
	}

	doc := &domain.Document{
		URI:      "inline",
		Title:    title,
		Content:  text,
		Metadata: meta,
	}

	report, err := ragService.Ingest(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %q: %d chunks added", title, report.ChunksAdded)
	if report.ChunksRejected > 0 {
		cmd.Printf(", %d rejected", report.ChunksRejected)
	}
	cmd.Println()
	return nil
}

// ingestPaths ingests every text file under the given paths. A file
// that fails to ingest is reported and skipped; the call only fails
// when nothing could be ingested.
func ingestPaths(ctx context.Context, cmd *cobra.Command, paths []string, meta map[string]any) error {
	var files []string
	for _, path := range paths {
		found, err := collectFiles(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, found...)
	}

	if len(files) == 0 {
		cmd.Printf("No supported files found (looking for %s).\n", strings.Join(formatRegistry.Extensions(), ", "))
		return nil
	}

	ingested := 0
	chunks := 0
	for _, file := range files {
		report, err := ingestFile(ctx, file, meta)
		if err != nil {
			cmd.Printf("  %s: FAILED (%v)\n", file, err)
			continue
		}

		cmd.Printf("  %s: %d chunks added", file, report.ChunksAdded)
		if report.ChunksRejected > 0 {
			cmd.Printf(", %d rejected", report.ChunksRejected)
		}
		cmd.Println()

		ingested++
		chunks += report.ChunksAdded
	}

	if ingested == 0 {
		return fmt.Errorf("%w: no documents could be ingested", domain.ErrIngest)
	}

	cmd.Printf("\nIngested %d documents (%d chunks).\n", ingested, chunks)
	return nil
}

// ingestFile reads one file, extracts its text through the format
// registry and ingests it. The document ID is derived from the
// absolute path so re-ingesting a file updates the existing document
// instead of duplicating it.
func ingestFile(ctx context.Context, path string, meta map[string]any) (*domain.IngestReport, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	normaliser, ok := formatRegistry.ForPath(abs)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, filepath.Ext(abs))
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	result, err := normaliser.Normalise(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", abs, err)
	}

	title := result.Title
	if title == "" {
		title = normalisers.TitleFromPath(abs)
	}

	doc := &domain.Document{
		ID:       fileDocumentID(abs),
		URI:      abs,
		Title:    title,
		Content:  result.Content,
		Metadata: mergeMetadata(result.Metadata, meta),
	}

	return ragService.Ingest(ctx, doc)
}

// mergeMetadata layers user-supplied metadata over what the normaliser
// extracted. User pairs win on conflict.
func mergeMetadata(extracted, user map[string]any) map[string]any {
	if len(extracted) == 0 {
		return user
	}
	merged := make(map[string]any, len(extracted)+len(user))
	for key, value := range extracted {
		merged[key] = value
	}
	for key, value := range user {
		merged[key] = value
	}
	return merged
}

// fileDocumentID derives a stable document ID from an absolute path.
func fileDocumentID(abs string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String()
}

// collectFiles resolves a path to the files it covers. A file is
// returned as-is; a directory is walked for supported files, skipping
// hidden entries.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(entry string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry == path {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !formatRegistry.Supported(entry) {
			return nil
		}
		files = append(files, entry)
		return nil
	})
	return files, err
}

// watchAndIngest watches the paths and keeps the index in step with
// the filesystem until the context is cancelled.
func watchAndIngest(cmd *cobra.Command, paths []string, meta map[string]any) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck // Best-effort cleanup

	for _, path := range paths {
		if err := addWatchTarget(watcher, path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd.Println("\nWatching for changes. Press Ctrl-C to stop.")
	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped watching.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleWatchEvent(ctx, cmd, watcher, event, meta)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// addWatchTarget registers a path with the watcher. Directories are
// registered recursively since fsnotify watches are not.
func addWatchTarget(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(path)
	}

	return filepath.WalkDir(path, func(entry string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if entry != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(entry)
	})
}

// handleWatchEvent reacts to one filesystem event: created and written
// files are re-ingested, removed ones are dropped from the index, new
// directories join the watch set. Chmod-only events are ignored.
func handleWatchEvent(
	ctx context.Context, cmd *cobra.Command, watcher *fsnotify.Watcher, event fsnotify.Event, meta map[string]any,
) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if event.Op.Has(fsnotify.Create) {
				if err := addWatchTarget(watcher, event.Name); err != nil {
					logger.Warn("Failed to watch new directory %s: %v", event.Name, err)
				}
			}
			return
		}
		if !formatRegistry.Supported(event.Name) {
			return
		}

		report, err := ingestFile(ctx, event.Name, meta)
		if err != nil {
			cmd.Printf("  %s: FAILED (%v)\n", event.Name, err)
			return
		}
		cmd.Printf("  %s: %d chunks added\n", event.Name, report.ChunksAdded)

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if !formatRegistry.Supported(event.Name) || catalogService == nil {
			return
		}

		abs, err := filepath.Abs(event.Name)
		if err != nil {
			return
		}
		removed, err := catalogService.Remove(ctx, fileDocumentID(abs))
		if err != nil {
			// Files conversa never ingested are not in the catalogue
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Failed to remove %s from index: %v", event.Name, err)
			}
			return
		}
		cmd.Printf("  %s: removed (%d chunks dropped)\n", event.Name, removed)
	}
}
