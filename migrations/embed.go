package migrations

import "embed"

// FS holds the Postgres schema files applied at startup.
//
//go:embed *.sql
var FS embed.FS
