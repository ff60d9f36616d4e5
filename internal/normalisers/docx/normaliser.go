package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
	"github.com/custodia-labs/conversa-cli/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ normalisers.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX files. A DOCX is a ZIP archive; the text
// lives in word/document.xml and the title in docProps/core.xml.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".docx"}
}

// Normalise extracts paragraphs from the document body and the title
// from the core properties.
func (n *Normaliser) Normalise(raw []byte) (*normalisers.Result, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	content, err := extractDocumentText(reader)
	if err != nil {
		return nil, err
	}

	return &normalisers.Result{
		Title:    extractCoreTitle(reader),
		Content:  content,
		Metadata: map[string]any{"format": "docx"},
	}, nil
}

// extractDocumentText extracts text from word/document.xml.
func extractDocumentText(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", domain.ErrInvalidInput
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", domain.ErrInvalidInput
		}

		return parseDocumentXML(content), nil
	}
	return "", nil
}

// documentXML mirrors the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML flattens the body paragraphs to plain text, one
// line per paragraph.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, text := range r.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// coreXML mirrors the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// extractCoreTitle returns the document title from the core
// properties, or "".
func extractCoreTitle(reader *zip.Reader) string {
	for _, file := range reader.File {
		if file.Name != "docProps/core.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return ""
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return ""
		}

		var core coreXML
		if err := xml.Unmarshal(content, &core); err == nil {
			return strings.TrimSpace(core.Title)
		}
		return ""
	}
	return ""
}
