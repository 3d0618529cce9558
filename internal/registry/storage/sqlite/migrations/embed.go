// Package migrations embeds the registry mirror schema migrations.
package migrations

import "embed"

// FS contains the SQL migration files applied at startup.
//
//go:embed *.sql
var FS embed.FS
