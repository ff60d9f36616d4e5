// Package html provides a Normaliser implementation for HTML documents.
// It extracts readable text content from HTML, stripping tags, scripts
// and styles and decoding entities, so the chunker sees clean prose.
package html
