// Package migrations embeds the SQL schema of the corpus chunk store.
package migrations

import "embed"

// FS contains the numbered .up.sql and .down.sql files.
//
//go:embed *.sql
var FS embed.FS
