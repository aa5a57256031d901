// Package migrations embeds the goose migration files for both engine
// dialects. The store selects the directory matching the active backend.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
