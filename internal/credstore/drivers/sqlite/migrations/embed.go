// Package migrations embeds the sqlite schema of the credential store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
