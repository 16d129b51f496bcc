package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/okian/league/internal/domain/model"
)

// RegisterPlayer inserts a player at the default rating. created is false
// when the identity was already registered; the stored row is returned then.
func (s *Store) RegisterPlayer(ctx context.Context, identity, displayName string) (model.Player, bool, error) {
	now := s.now().UTC()
	row := &playerRow{
		Identity:    identity,
		DisplayName: displayName,
		Rating:      model.DefaultRating,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := s.db.NewInsert().Model(row).On("CONFLICT (identity) DO NOTHING").Exec(ctx)
	if err != nil {
		return model.Player{}, false, fmt.Errorf("register player: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return row.toModel(), true, nil
	}
	existing, err := s.Player(ctx, identity)
	if err != nil {
		return model.Player{}, false, err
	}
	return existing, false, nil
}

// Player loads one player.
func (s *Store) Player(ctx context.Context, identity string) (model.Player, error) {
	return player(ctx, s.db, identity)
}

func player(ctx context.Context, db bun.IDB, identity string) (model.Player, error) {
	row := new(playerRow)
	if err := db.NewSelect().Model(row).Where("identity = ?", identity).Scan(ctx); err != nil {
		return model.Player{}, notFound(err, "player "+identity)
	}
	return row.toModel(), nil
}

// Players returns one page of players ordered by rating, best first, and the
// total number of players.
func (s *Store) Players(ctx context.Context, offset, limit int) ([]model.Player, int, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("%w: offset %d limit %d", ErrInvalidPage, offset, limit)
	}
	var rows []playerRow
	total, err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("rating DESC, identity ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list players: %w", err)
	}
	return toPlayers(rows), total, nil
}

// AllPlayers returns every player ordered by rating, best first.
func (s *Store) AllPlayers(ctx context.Context) ([]model.Player, error) {
	var rows []playerRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("rating DESC, identity ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return toPlayers(rows), nil
}

// Roster returns the players of division ordered by name.
func (s *Store) Roster(ctx context.Context, division string) ([]model.Player, error) {
	var rows []playerRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("division = ? COLLATE NOCASE", strings.TrimSpace(division)).
		OrderExpr("display_name ASC, identity ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", division, err)
	}
	return toPlayers(rows), nil
}

// AssignDivision moves every listed player into division in one transaction.
// It fails with ErrNotFound, assigning nobody, if any identity is unknown.
func (s *Store) AssignDivision(ctx context.Context, identities []string, division string) ([]model.Player, error) {
	if len(identities) == 0 {
		return nil, ErrEmptyAssignment
	}
	now := s.now().UTC()
	var out []model.Player
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		out = out[:0]
		for _, id := range identities {
			res, err := tx.NewUpdate().
				Model((*playerRow)(nil)).
				Set("division = ?", division).
				Set("updated_at = ?", now).
				Where("identity = ?", id).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("assign %s: %w", id, err)
			}
			if n, err := res.RowsAffected(); err != nil || n == 0 {
				return fmt.Errorf("%w: player %s", ErrNotFound, id)
			}
			p, err := player(ctx, tx, id)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountPlayers returns the number of registered players.
func (s *Store) CountPlayers(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*playerRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return n, nil
}

// RatingHistory returns the rating changes of identity, newest first.
func (s *Store) RatingHistory(ctx context.Context, identity string, limit int) ([]model.RatingChange, error) {
	var rows []ratingChangeRow
	q := s.db.NewSelect().Model(&rows).Where("identity = ?", identity).OrderExpr("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("rating history %s: %w", identity, err)
	}
	out := make([]model.RatingChange, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func toPlayers(rows []playerRow) []model.Player {
	out := make([]model.Player, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
