// Package chunker splits document text into bounded, overlapping chunks.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// paragraphSep marks a paragraph boundary.
const paragraphSep = "\n\n"

// sentenceEnd matches a sentence terminator followed by whitespace.
var sentenceEnd = regexp.MustCompile(`[.!?][ \t\r\n]`)

// Splitter cuts text at natural boundaries where possible: paragraph
// breaks first, sentence ends second, a hard cut at the size limit
// last. Consecutive chunks share an overlap-length span of text.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: domain.DefaultChunkSize,
		overlap:   domain.DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Split cuts the document content into ordered chunks. Every byte of
// the content appears in at least one chunk, no chunk exceeds the
// configured size, and each chunk after the first repeats the tail of
// its predecessor (overlap bytes, shortened only when that would
// split a multi-byte rune). The same content always yields the same
// chunks apart from their generated IDs.
func (s *Splitter) Split(doc *domain.Document) []domain.Chunk {
	if doc.Content == "" {
		// Empty content produces no chunks
		return nil
	}

	content := doc.Content
	contentLen := len(content)

	// Estimate number of chunks
	estimatedChunks := (contentLen / (s.chunkSize - s.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimatedChunks)

	position := 0
	start := 0

	for start < contentLen {
		end := s.cut(content, start)

		chunk := domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    content[start:end],
			Position:   position,
			Metadata:   inherit(doc.Metadata),
		}

		chunks = append(chunks, chunk)
		position++

		if end >= contentLen {
			break
		}

		// Begin the next chunk inside the previous one so adjacent
		// chunks share context.
		start = end - s.overlap
		for start < end && !utf8.RuneStart(content[start]) {
			start++
		}
	}

	return chunks
}

// cut returns the end offset of the chunk starting at start. A cut is
// only usable if it lands beyond start+overlap, otherwise the next
// chunk would not advance.
func (s *Splitter) cut(content string, start int) int {
	end := start + s.chunkSize
	if end >= len(content) {
		return len(content)
	}

	window := content[start:end]
	floor := start + s.overlap

	// 1. Prefer the last paragraph break in the window.
	if i := strings.LastIndex(window, paragraphSep); i >= 0 {
		if c := start + i + len(paragraphSep); c > floor {
			return c
		}
	}

	// 2. Fall back to the last sentence end in the window.
	if locs := sentenceEnd.FindAllStringIndex(window, -1); len(locs) > 0 {
		for i := len(locs) - 1; i >= 0; i-- {
			if c := start + locs[i][1]; c > floor {
				return c
			}
		}
	}

	// 3. Hard cut at the size limit, backed off so a multi-byte rune
	// is never split.
	for end > floor+1 && !utf8.RuneStart(content[end]) {
		end--
	}

	return end
}

// inherit copies document metadata so chunk-local additions never
// leak into the parent or sibling chunks.
func inherit(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
