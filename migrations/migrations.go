// Package migrations embeds the goose SQL migrations so every binary ships them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
