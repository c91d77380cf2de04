package resources

import "embed"

// FS holds the database migrations and translation dictionaries.
//
//go:embed migrations/*.sql i18n/*.yml
var FS embed.FS
