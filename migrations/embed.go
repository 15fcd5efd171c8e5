// Package migrations embeds the gateway's SQL schema migrations into the
// binary so they travel with the executable rather than the filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/knxip-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
