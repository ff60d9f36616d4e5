package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [path...]", ingestCmd.Use)
}

func TestIngestCmd_Short(t *testing.T) {
	assert.Equal(t, "Ingest documents into the vector index", ingestCmd.Short)
}

func TestIngestCmd_Long(t *testing.T) {
	assert.Contains(t, ingestCmd.Long, "Markdown")
	assert.Contains(t, ingestCmd.Long, ".docx")
	assert.Contains(t, ingestCmd.Long, "--watch")
}

func TestIngestCmd_HasTextFlag(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("text")
	require.NotNil(t, flag, "text flag should exist")
}

func TestIngestCmd_HasMetaFlag(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("meta")
	require.NotNil(t, flag, "meta flag should exist")
	assert.Equal(t, "m", flag.Shorthand)
}

func TestIngestCmd_HasWatchFlag(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("watch")
	require.NotNil(t, flag, "watch flag should exist")
	assert.Equal(t, "w", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)
}

func TestIngestCmd_NothingToIngest(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ingest")
}

func TestIngestCmd_InlineText(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--text", "some inline content"})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestText = ""
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "3 chunks added")
}

func TestIngestCmd_InlineTextWithTitle(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--text", "some inline content", "--title", "My Note"})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestText = ""
		ingestTitle = ""
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "My Note")
}

func TestIngestCmd_TextWithPathsFails(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "--text", "content", "/some/path"})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestText = ""
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot combine --text with paths")
}

func TestIngestCmd_WatchRequiresPaths(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "--text", "content", "--watch"})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestText = ""
		ingestWatch = false
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "--watch requires paths")
}

func TestIngestCmd_SingleFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("file content"), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", path})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "notes.txt")
	assert.Contains(t, buf.String(), "3 chunks added")
	assert.Contains(t, buf.String(), "Ingested 1 documents (3 chunks)")
}

func TestIngestCmd_Directory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("bravo"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pdf"), []byte("charlie"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("hidden"), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", dir})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Ingested 2 documents")
	assert.NotContains(t, buf.String(), "c.pdf")
	assert.NotContains(t, buf.String(), ".hidden.txt")
}

func TestIngestCmd_EmptyDirectory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", t.TempDir()})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No supported files found")
}

func TestIngestCmd_MissingPath(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "/definitely/not/a/path"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestIngestCmd_ServiceNotConfigured(t *testing.T) {
	oldService := ragService
	ragService = nil
	defer func() {
		ragService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "--text", "content"})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestText = ""
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rag service not configured")
}

func TestIngestCmd_ServiceError(t *testing.T) {
	oldService := ragService
	ragService = &mockRAGServiceError{}
	defer func() {
		ragService = oldService
	}()

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", path})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no documents could be ingested")
	assert.Contains(t, buf.String(), "FAILED")
}

func TestCollectFiles_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

	// Explicitly named files are not extension-filtered
	files, err := collectFiles(path)

	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestCollectFiles_DirectoryFiltersAndSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.MD"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.go"), []byte("c"), 0o600))

	hidden := filepath.Join(dir, ".cache")
	require.NoError(t, os.Mkdir(hidden, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(hidden, "d.txt"), []byte("d"), 0o600))

	nested := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(nested, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "e.md"), []byte("e"), 0o600))

	files, err := collectFiles(dir)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.MD"),
		filepath.Join(nested, "e.md"),
	}, files)
}

func TestCollectFiles_Missing(t *testing.T) {
	_, err := collectFiles("/definitely/not/a/path")

	assert.Error(t, err)
}

func TestFormatRegistry_Supported(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"notes.txt", true},
		{"README.md", true},
		{"UPPER.TXT", true},
		{"page.html", true},
		{"report.docx", true},
		{"message.eml", true},
		{"app.log", true},
		{"main.go", false},
		{"noextension", false},
		{"archive.txt.gz", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatRegistry.Supported(tt.path))
		})
	}
}

func TestIngestCmd_MarkdownTitleFromHeading(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	recorder := &mockRAGServiceRecorder{}
	ragService = recorder

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(path, []byte("# Project Plan\n\nShip the thing."), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", path})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.Execute())

	require.Len(t, recorder.docs, 1)
	doc := recorder.docs[0]
	assert.Equal(t, "Project Plan", doc.Title)
	assert.Contains(t, doc.Content, "Ship the thing.")
	assert.Equal(t, "markdown", doc.Metadata["format"])
}

func TestIngestCmd_TitleFallsBackToFilename(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	recorder := &mockRAGServiceRecorder{}
	ragService = recorder

	dir := t.TempDir()
	path := filepath.Join(dir, "meeting_notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("minutes"), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", path})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.Execute())

	require.Len(t, recorder.docs, 1)
	assert.Equal(t, "meeting notes", recorder.docs[0].Title)
}

func TestIngestCmd_MetaFlagOverridesExtracted(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	recorder := &mockRAGServiceRecorder{}
	ragService = recorder

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody."), 0o600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--meta", "format=custom", path})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestMeta = nil
	}()

	require.NoError(t, rootCmd.Execute())

	require.Len(t, recorder.docs, 1)
	assert.Equal(t, "custom", recorder.docs[0].Metadata["format"])
}

func TestIngestFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.xyz")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	_, err := ingestFile(context.Background(), path, nil)

	assert.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestMergeMetadata(t *testing.T) {
	user := map[string]any{"format": "custom"}
	extracted := map[string]any{"format": "markdown", "lang": "en"}

	merged := mergeMetadata(extracted, user)
	assert.Equal(t, "custom", merged["format"], "user metadata wins on conflict")
	assert.Equal(t, "en", merged["lang"])

	assert.Equal(t, user, mergeMetadata(nil, user))
	assert.Equal(t, extracted, mergeMetadata(extracted, nil))
}

func TestFileDocumentID_Stable(t *testing.T) {
	first := fileDocumentID("/home/user/notes.txt")
	second := fileDocumentID("/home/user/notes.txt")
	other := fileDocumentID("/home/user/other.txt")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}
