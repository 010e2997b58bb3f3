// Package migrations contains the embedded SQL schema migrations, applied
// in filename order by sqlite.Migrator.
package migrations

import "embed"

//go:embed *.sql
var All embed.FS
