package repository

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the SQL migrations for the users and tasks tables
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
