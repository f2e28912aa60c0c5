// Package migrations embeds the goose migrations of the CLI session cache.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
