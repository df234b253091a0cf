// Package migrations holds the embedded goose migrations for the sqlite
// store backend.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SQLite embed.FS
