package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS players (
				identity TEXT PRIMARY KEY,
				display_name TEXT NOT NULL DEFAULT '',
				rating INTEGER NOT NULL DEFAULT 1200,
				division TEXT,
				version INTEGER NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS matches (
				id TEXT PRIMARY KEY,
				division TEXT NOT NULL,
				week INTEGER NOT NULL CHECK (week > 0),
				position INTEGER NOT NULL,
				team1 TEXT NOT NULL,
				team2 TEXT NOT NULL,
				played BOOLEAN NOT NULL DEFAULT 0,
				score1 INTEGER,
				score2 INTEGER,
				replay1 TEXT,
				replay2 TEXT,
				replay3 TEXT,
				submitted_by TEXT,
				approved_by TEXT,
				played_at TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS rating_changes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				match_id TEXT NOT NULL REFERENCES matches (id),
				identity TEXT NOT NULL REFERENCES players (identity),
				rating_before INTEGER NOT NULL,
				rating_after INTEGER NOT NULL,
				delta INTEGER NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create league tables: %w", err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, table := range []string{"rating_changes", "matches", "players"} {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
		return nil
	})
}
