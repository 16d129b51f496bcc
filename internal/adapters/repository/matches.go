package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/okian/league/internal/domain/model"
)

// InsertMatches stores one division's fixtures in schedule order. The batch
// is atomic: a duplicate id rejects all of it.
func (s *Store) InsertMatches(ctx context.Context, matches []model.Match) error {
	if len(matches) == 0 {
		return nil
	}
	rows := make([]matchRow, 0, len(matches))
	for i, m := range matches {
		rows = append(rows, matchRow{
			ID:       m.ID,
			Division: m.Division,
			Week:     m.Week,
			Position: i,
			Team1:    m.Team1,
			Team2:    m.Team2,
		})
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", ErrDuplicateMatch, err)
	}
	if err != nil {
		return fmt.Errorf("insert matches: %w", err)
	}
	return nil
}

// Match loads one match.
func (s *Store) Match(ctx context.Context, id string) (model.Match, error) {
	return match(ctx, s.db, id)
}

func match(ctx context.Context, db bun.IDB, id string) (model.Match, error) {
	row := new(matchRow)
	if err := db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return model.Match{}, notFound(err, "match "+id)
	}
	return row.toModel(), nil
}

// OpenMatches returns the unplayed matches of division in schedule order.
func (s *Store) OpenMatches(ctx context.Context, division string) ([]model.Match, error) {
	var rows []matchRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("division = ? COLLATE NOCASE", strings.TrimSpace(division)).
		Where("played = ?", false).
		OrderExpr("week ASC, position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("open matches %s: %w", division, err)
	}
	return toMatches(rows), nil
}

// Matches returns every match grouped by division in schedule order.
func (s *Store) Matches(ctx context.Context) ([]model.Match, error) {
	var rows []matchRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("division ASC, week ASC, position ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return toMatches(rows), nil
}

func toMatches(rows []matchRow) []model.Match {
	out := make([]model.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
