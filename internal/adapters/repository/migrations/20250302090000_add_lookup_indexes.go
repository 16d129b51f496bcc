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
			`CREATE INDEX IF NOT EXISTS idx_matches_division_open ON matches (division, played, week, position)`,
			`CREATE INDEX IF NOT EXISTS idx_players_division ON players (division)`,
			`CREATE INDEX IF NOT EXISTS idx_players_rating ON players (rating DESC, identity)`,
			`CREATE INDEX IF NOT EXISTS idx_rating_changes_identity ON rating_changes (identity, created_at)`,
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create lookup indexes: %w", err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, idx := range []string{
			"idx_rating_changes_identity",
			"idx_players_rating",
			"idx_players_division",
			"idx_matches_division_open",
		} {
			if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+idx); err != nil {
				return fmt.Errorf("drop %s: %w", idx, err)
			}
		}
		return nil
	})
}
