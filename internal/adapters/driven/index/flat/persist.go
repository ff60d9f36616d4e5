package flat

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

const (
	vectorsFile = "vectors.bin"
	payloadFile = "payload.jsonl"

	formatVersion = 1
	headerSize    = 24

	// maxPayloadLine bounds a single payload record. Chunk content is
	// bounded by the configured chunk size, so this is generous.
	maxPayloadLine = 16 << 20
)

// vectorsMagic identifies a vectors file.
var vectorsMagic = [4]byte{'C', 'N', 'V', 'X'}

// errNoIndex reports that no persisted state exists yet.
var errNoIndex = errors.New("no persisted index")

// payloadRecord is one line of the payload store. Embeddings are not
// duplicated here; they live in the vectors file at the same ordinal.
type payloadRecord struct {
	ID         uint64         `json:"id"`
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	Position   int            `json:"position"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// persist writes the given entry lists, in order, as the complete
// index state. The vectors file goes first: if the process dies
// between the two renames, the files disagree on count and the next
// load falls back to an empty index instead of mixing generations.
func (idx *Index) persist(nextID uint64, lists ...[]entry) error {
	if err := writeVectors(filepath.Join(idx.dir, vectorsFile), idx.dim, idx.metric, nextID, lists); err != nil {
		return err
	}
	return writePayload(filepath.Join(idx.dir, payloadFile), lists)
}

// writeVectors writes the binary vectors file: a fixed header
// followed by one (id, embedding) record per entry, little-endian.
func writeVectors(path string, dim int, metric domain.DistanceMetric, nextID uint64, lists [][]entry) error {
	count := 0
	for _, list := range lists {
		count += len(list)
	}

	return atomicWrite(path, func(f *os.File) error {
		w := bufio.NewWriter(f)

		header := make([]byte, headerSize)
		copy(header[0:4], vectorsMagic[:])
		binary.LittleEndian.PutUint16(header[4:6], formatVersion)
		header[6] = metricByte(metric)
		binary.LittleEndian.PutUint32(header[8:12], uint32(dim))
		binary.LittleEndian.PutUint32(header[12:16], uint32(count))
		binary.LittleEndian.PutUint64(header[16:24], nextID)
		if _, err := w.Write(header); err != nil {
			return err
		}

		idBuf := make([]byte, 8)
		for _, list := range lists {
			for i := range list {
				binary.LittleEndian.PutUint64(idBuf, list[i].id)
				if _, err := w.Write(idBuf); err != nil {
					return err
				}
				if _, err := w.Write(float32SliceToBytes(list[i].chunk.Embedding)); err != nil {
					return err
				}
			}
		}

		return w.Flush()
	})
}

// writePayload writes the JSONL payload store, one record per entry
// in the same order as the vectors file.
func writePayload(path string, lists [][]entry) error {
	return atomicWrite(path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)

		for _, list := range lists {
			for i := range list {
				chunk := &list[i].chunk
				rec := payloadRecord{
					ID:         list[i].id,
					ChunkID:    chunk.ID,
					DocumentID: chunk.DocumentID,
					Content:    chunk.Content,
					Position:   chunk.Position,
					Metadata:   chunk.Metadata,
				}
				if err := enc.Encode(&rec); err != nil {
					return err
				}
			}
		}

		return w.Flush()
	})
}

// atomicWrite writes through a temp file in the same directory,
// syncs it and renames it over path, so readers only ever see the
// old or the new complete file.
func atomicWrite(path string, write func(f *os.File) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}

	return nil
}

// load reads and validates the persisted index. It returns errNoIndex
// when neither file exists; any other error means the state is
// unusable and the caller should restart empty.
func load(dir string, wantDim int, wantMetric domain.DistanceMetric) ([]entry, uint64, error) {
	vecPath := filepath.Join(dir, vectorsFile)
	payPath := filepath.Join(dir, payloadFile)

	_, vecErr := os.Stat(vecPath)
	_, payErr := os.Stat(payPath)
	if os.IsNotExist(vecErr) && os.IsNotExist(payErr) {
		return nil, 1, errNoIndex
	}
	if os.IsNotExist(vecErr) || os.IsNotExist(payErr) {
		return nil, 0, errors.New("vectors and payload files do not pair up")
	}

	ids, vectors, nextID, err := readVectors(vecPath, wantDim, wantMetric)
	if err != nil {
		return nil, 0, err
	}

	records, err := readPayload(payPath)
	if err != nil {
		return nil, 0, err
	}

	if len(records) != len(ids) {
		return nil, 0, fmt.Errorf("vector count %d does not match payload count %d", len(ids), len(records))
	}

	entries := make([]entry, len(ids))
	for i := range ids {
		if records[i].ID != ids[i] {
			return nil, 0, fmt.Errorf("entry %d: vector ID %d does not match payload ID %d", i, ids[i], records[i].ID)
		}
		entries[i] = entry{
			id: ids[i],
			chunk: domain.Chunk{
				ID:         records[i].ChunkID,
				DocumentID: records[i].DocumentID,
				Content:    records[i].Content,
				Position:   records[i].Position,
				Embedding:  vectors[i],
				Metadata:   records[i].Metadata,
			},
		}
	}

	return entries, nextID, nil
}

// readVectors reads and validates the binary vectors file.
func readVectors(path string, wantDim int, wantMetric domain.DistanceMetric) ([]uint64, [][]float32, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("opening vectors file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, nil, 0, fmt.Errorf("reading vectors header: %w", err)
	}

	if !bytes.Equal(header[0:4], vectorsMagic[:]) {
		return nil, nil, 0, errors.New("vectors file has wrong magic")
	}
	if version := binary.LittleEndian.Uint16(header[4:6]); version != formatVersion {
		return nil, nil, 0, fmt.Errorf("unsupported vectors format version %d", version)
	}

	metric, ok := metricFromByte(header[6])
	if !ok {
		return nil, nil, 0, fmt.Errorf("unknown metric byte %d", header[6])
	}
	if metric != wantMetric {
		return nil, nil, 0, fmt.Errorf("index metric %s does not match configured metric %s", metric, wantMetric)
	}

	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	if dim != wantDim {
		return nil, nil, 0, fmt.Errorf("index dimension %d does not match embedding dimension %d", dim, wantDim)
	}

	count := int(binary.LittleEndian.Uint32(header[12:16]))
	nextID := binary.LittleEndian.Uint64(header[16:24])

	// The size check rejects truncated files and garbage counts
	// before any allocation depends on them.
	info, err := f.Stat()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("stat vectors file: %w", err)
	}
	if want := int64(headerSize) + int64(count)*int64(8+dim*4); info.Size() != want {
		return nil, nil, 0, fmt.Errorf("vectors file size %d does not match %d entries", info.Size(), count)
	}

	r := bufio.NewReader(f)
	ids := make([]uint64, count)
	vectors := make([][]float32, count)
	idBuf := make([]byte, 8)
	vecBuf := make([]byte, dim*4)

	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, idBuf); err != nil {
			return nil, nil, 0, fmt.Errorf("reading vector %d: %w", i, err)
		}
		ids[i] = binary.LittleEndian.Uint64(idBuf)

		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return nil, nil, 0, fmt.Errorf("reading vector %d: %w", i, err)
		}
		vectors[i] = bytesToFloat32Slice(vecBuf)
	}

	return ids, vectors, nextID, nil
}

// readPayload reads the JSONL payload store.
func readPayload(path string) ([]payloadRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening payload file: %w", err)
	}
	defer f.Close()

	var records []payloadRecord

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxPayloadLine)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec payloadRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("payload line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading payload file: %w", err)
	}

	return records, nil
}

// metricByte encodes the metric for the vectors header.
func metricByte(m domain.DistanceMetric) byte {
	if m == domain.MetricCosine {
		return 1
	}
	return 0
}

// metricFromByte decodes the metric from the vectors header.
func metricFromByte(b byte) (domain.DistanceMetric, bool) {
	switch b {
	case 0:
		return domain.MetricL2, true
	case 1:
		return domain.MetricCosine, true
	default:
		return "", false
	}
}

// float32SliceToBytes converts a []float32 to its little-endian byte
// representation.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a little-endian byte slice back to
// []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
