package normalisers

import (
	"path/filepath"
	"sort"
	"strings"
)

// Result is the outcome of normalising one raw file.
type Result struct {
	// Title is the document title found in the source, empty when the
	// format carries none.
	Title string

	// Content is the extracted plain text.
	Content string

	// Metadata holds format-specific extras (format tag, mail headers).
	// May be nil.
	Metadata map[string]any
}

// Normaliser extracts plain text from one source format.
type Normaliser interface {
	// Extensions lists the lower-case file extensions this normaliser
	// accepts, dot included.
	Extensions() []string

	// Normalise extracts text and title from raw file content.
	Normalise(raw []byte) (*Result, error)
}

// Registry dispatches files to the normaliser registered for their
// extension. A later registration wins an extension conflict.
type Registry struct {
	byExt map[string]Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Normaliser)}
}

// Register adds a normaliser under its advertised extensions.
func (r *Registry) Register(n Normaliser) {
	for _, ext := range n.Extensions() {
		r.byExt[strings.ToLower(ext)] = n
	}
}

// ForPath returns the normaliser registered for the path's extension.
func (r *Registry) ForPath(path string) (Normaliser, bool) {
	n, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return n, ok
}

// Supported reports whether the path's extension has a normaliser.
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// TitleFromPath derives a human-readable title from a file path, for
// formats that carry no title of their own.
func TitleFromPath(path string) string {
	filename := filepath.Base(path)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}
