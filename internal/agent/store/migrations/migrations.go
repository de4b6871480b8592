// Package migrations embeds the goose migration scripts for the on-device
// SQLite store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
