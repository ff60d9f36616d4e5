package flat

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/logger"
)

// captureLog redirects logger output for the duration of a test so
// warnings can be asserted on.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

// seedIndex creates an index with a few persisted entries and closes
// it, returning the directory.
func seedIndex(t *testing.T) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "conversa-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)

	chunks := []domain.Chunk{
		testChunk("a", "doc-1", []float32{1, 0}, map[string]any{"source": "A"}),
		testChunk("b", "doc-1", []float32{0, 1}, map[string]any{"source": "B"}),
		testChunk("c", "doc-2", []float32{1, 1}, nil),
	}
	_, _, err = idx.Add(context.Background(), chunks)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	return tempDir
}

// ==================== Round-Trip Tests ====================

func TestPersistence_RoundTrip(t *testing.T) {
	tempDir := seedIndex(t)

	queries := [][]float32{
		{1, 0},
		{0, 1},
		{0.7, 0.7},
	}

	first, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	var before [][]domain.ScoredChunk
	for _, q := range queries {
		results, err := first.Search(context.Background(), q, 3, nil)
		require.NoError(t, err)
		before = append(before, results)
	}
	require.NoError(t, first.Close())

	second, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, 3, second.Count())
	for i, q := range queries {
		results, err := second.Search(context.Background(), q, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, len(before[i]))
		for j := range results {
			assert.Equal(t, before[i][j].Chunk.ID, results[j].Chunk.ID)
			assert.Equal(t, before[i][j].Distance, results[j].Distance)
		}
	}
}

func TestPersistence_MetadataSurvivesReload(t *testing.T) {
	tempDir := seedIndex(t)

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search(context.Background(), []float32{0, 1}, 1, map[string]any{"source": "B"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Chunk.ID)
	assert.Equal(t, "content of b", results[0].Chunk.Content)
	assert.Equal(t, "doc-1", results[0].Chunk.DocumentID)
}

// ==================== Self-Heal Tests ====================

func TestLoad_MissingPayloadFile(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	require.NoError(t, os.Remove(filepath.Join(tempDir, payloadFile)))

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err, "corruption must not be fatal")
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "reinitializing")
}

func TestLoad_WrongMagic(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	path := filepath.Join(tempDir, vectorsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data[0:4], []byte("XXXX"))
	require.NoError(t, os.WriteFile(path, data, 0600))

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	path := filepath.Join(tempDir, vectorsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[4] = 0xFF
	data[5] = 0xFF
	require.NoError(t, os.WriteFile(path, data, 0600))

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestLoad_TruncatedVectors(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	path := filepath.Join(tempDir, vectorsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-5], 0600))

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestLoad_PayloadCountMismatch(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	// Drop the last payload line so the counts disagree.
	path := filepath.Join(tempDir, payloadFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	shortened := strings.Join(lines[:2], "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(shortened), 0600))

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "does not match")
}

func TestLoad_MalformedPayloadLine(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	path := filepath.Join(tempDir, payloadFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("{not json\n")...), 0600))

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestLoad_DimensionChanged(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	// The persisted index is 2-dimensional; a new embedding model
	// with a different dimension cannot reuse it.
	idx, err := New(tempDir, 8, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Equal(t, 8, idx.Dimensions())
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "dimension")
}

func TestLoad_MetricChanged(t *testing.T) {
	tempDir := seedIndex(t)
	buf := captureLog(t)

	idx, err := New(tempDir, 2, domain.MetricCosine)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 0, idx.Count())
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "metric")
}

func TestLoad_HealedIndexAcceptsNewData(t *testing.T) {
	tempDir := seedIndex(t)
	captureLog(t)

	require.NoError(t, os.Remove(filepath.Join(tempDir, payloadFile)))

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()
	require.Equal(t, 0, idx.Count())

	added, _, err := idx.Add(context.Background(), []domain.Chunk{
		testChunk("fresh", "doc", []float32{1, 0}, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// The rewrite replaced the stale files: a reopen sees only the
	// new entry.
	require.NoError(t, idx.Close())
	reopened, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 1, reopened.Count())
}

// ==================== File Discipline Tests ====================

func TestPersist_LeavesNoTempFiles(t *testing.T) {
	tempDir := seedIndex(t)

	idx, err := New(tempDir, 2, domain.MetricL2)
	require.NoError(t, err)
	defer idx.Close()

	_, _, err = idx.Add(context.Background(), []domain.Chunk{
		testChunk("d", "doc-3", []float32{0.5, 0.5}, nil),
	})
	require.NoError(t, err)

	files, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	names := []string{files[0].Name(), files[1].Name()}
	assert.Contains(t, names, vectorsFile)
	assert.Contains(t, names, payloadFile)
}

func TestPayload_OneJSONRecordPerLine(t *testing.T) {
	tempDir := seedIndex(t)

	data, err := os.ReadFile(filepath.Join(tempDir, payloadFile))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "{"), "line is not a JSON object: %q", line)
		assert.Contains(t, line, `"chunk_id"`)
		assert.Contains(t, line, `"document_id"`)
	}
}

func TestFloat32Codec(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 3.14159, -2.71828}
	out := bytesToFloat32Slice(float32SliceToBytes(in))
	assert.Equal(t, in, out)

	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
