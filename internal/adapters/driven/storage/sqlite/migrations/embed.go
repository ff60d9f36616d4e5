// Package migrations embeds the SQL migration files for the document
// catalogue.
package migrations

import "embed"

// FS holds the ordered migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
