// Package migrations embeds the goose SQL migrations. Each dialect has its own directory, named after its driver.
package migrations

import "embed"

//go:embed mysql/*.sql postgres/*.sql
var FS embed.FS
