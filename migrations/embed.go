// Package migrations embeds the booking schema migrations so server
// bootstrap and test TestMains can apply them through the goose
// programmatic API without a migrations directory on disk.
package migrations

import "embed"

// FS holds every *.sql migration file, embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
