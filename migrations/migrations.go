// Package migrations embeds the database schema migrations so the server
// binary can bootstrap a database without external files.
package migrations

import "embed"

//go:embed postgres/*.sql
var FS embed.FS
