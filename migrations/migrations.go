// Package migrations embeds the SQL schema so the server, the migration
// script and the integration tests apply the same files.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
