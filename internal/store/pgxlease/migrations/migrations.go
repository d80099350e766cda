// Package migrations embeds the SQL migrations applied by pgxlease via
// golang-migrate/migrate's iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
