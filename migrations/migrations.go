package migrations

import "embed"

// FS embeds the SQL migration files in this directory, read by the
// golang-migrate iofs driver.
//
//go:embed *.sql
var FS embed.FS

const Version = 1
