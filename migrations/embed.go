// AngelaMos | 2026
// embed.go

package migrations

import "embed"

// Files holds the golang-migrate up/down scripts.
//
//go:embed *.sql
var Files embed.FS
