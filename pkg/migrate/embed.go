package migrate

import "embed"

// Migrations holds the SQL files shipped inside every binary.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// EmbeddedDir is the directory name of Migrations.
const EmbeddedDir = "migrations"
