// Package assets holds the files embedded into the binaries: SQL migrations and email templates.
package assets

import "embed"

//go:embed migrations/*.sql all:templates
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)
