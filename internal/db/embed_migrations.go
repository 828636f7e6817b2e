package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations, one directory per driver
// (migrations/postgres, migrations/sqlite). Used by the migrate runner and cmd/migrate.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS
