// Package migrations embeds the brightsync schema so the daemon can migrate
// its state database without SQL files on disk.
package migrations

import "embed"

// FS holds every *.sql migration at its root. Pass it to DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
