// Package migrations embeds the SQL schema of the storefront.
package migrations

import "embed"

// FS holds the migration files; Dir is their directory inside FS.
//
//go:embed sql/*.sql
var FS embed.FS

const Dir = "sql"
