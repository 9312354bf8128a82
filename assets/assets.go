// Package assets holds the files embedded in the binaries.
package assets

import "embed"

//go:embed all:templates migrations
var FS embed.FS

// MigrationsDir is the directory of the SQL migrations within FS.
const MigrationsDir = "migrations"
