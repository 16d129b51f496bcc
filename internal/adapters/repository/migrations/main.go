// Package migrations holds the schema history of the league database.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()

func init() {
	// Derive migration names from the registering file so MustRegister
	// needs no explicit ids.
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
}
