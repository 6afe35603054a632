// Package migrations embeds the versioned SQL migrations for the
// PostgreSQL schema. They are applied by `udpchat initdb` through
// golang-migrate and mirror what GORM AutoMigrate builds, down to the
// index and constraint names, so the two paths agree on the schema.
package migrations

import "embed"

// FS holds the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
