// Package normalisers extracts plain text from the file formats the
// ingest pipeline accepts. Each subpackage handles one format; the
// registry dispatches on file extension and is assembled at startup.
package normalisers
