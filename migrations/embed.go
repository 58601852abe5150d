// Package migrations embeds the SQL schema files into the binary and
// registers them with the database package at init.
package migrations

import (
	"embed"

	"github.com/nerrad567/taskledger/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
