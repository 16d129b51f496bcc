package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/rating"
)

// Result is a reviewed match result ready to be written.
type Result struct {
	MatchID   string
	Submitter string
	Opponent  string
	Reviewer  string
	Score     rating.Score
	Replays   []string
}

// Receipt describes a committed result.
type Receipt struct {
	Match     model.Match
	Submitter model.RatingChange
	Opponent  model.RatingChange
}

// RateFunc maps the pre-update ratings of submitter and opponent to the update.
type RateFunc func(submitterRating, opponentRating int) (rating.Outcome, error)

// CommitResult writes the match result, both rating updates and their
// history rows in one transaction. The match write only applies to an
// unplayed match and each rating write only to the version read in the same
// transaction, so a concurrent commit makes this one fail without effect.
func (s *Store) CommitResult(ctx context.Context, r Result, rate RateFunc) (Receipt, error) {
	if r.Submitter == r.Opponent {
		return Receipt{}, fmt.Errorf("%w: %s", ErrSamePlayer, r.Submitter)
	}
	if len(r.Replays) > model.MaxReplays {
		return Receipt{}, fmt.Errorf("commit %s: %d replays", r.MatchID, len(r.Replays))
	}
	now := s.now().UTC()

	var receipt Receipt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m, err := match(ctx, tx, r.MatchID)
		if err != nil {
			return err
		}
		if m.Played {
			return fmt.Errorf("%w: %s", ErrAlreadyPlayed, r.MatchID)
		}
		sub, err := player(ctx, tx, r.Submitter)
		if err != nil {
			return err
		}
		opp, err := player(ctx, tx, r.Opponent)
		if err != nil {
			return err
		}
		out, err := rate(sub.Rating, opp.Rating)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}

		if err := markPlayed(ctx, tx, r, now); err != nil {
			return err
		}
		if err := writeRating(ctx, tx, sub, out.NewA, now); err != nil {
			return err
		}
		if err := writeRating(ctx, tx, opp, out.NewB, now); err != nil {
			return err
		}
		history := []ratingChangeRow{
			{MatchID: r.MatchID, Identity: sub.Identity, Before: sub.Rating, After: out.NewA, Delta: out.DeltaA, CreatedAt: now},
			{MatchID: r.MatchID, Identity: opp.Identity, Before: opp.Rating, After: out.NewB, Delta: out.DeltaB, CreatedAt: now},
		}
		if _, err := tx.NewInsert().Model(&history).Exec(ctx); err != nil {
			return fmt.Errorf("insert rating history: %w", err)
		}

		if m, err = match(ctx, tx, r.MatchID); err != nil {
			return err
		}
		receipt = Receipt{Match: m, Submitter: history[0].toModel(), Opponent: history[1].toModel()}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

func markPlayed(ctx context.Context, tx bun.Tx, r Result, now time.Time) error {
	replays := make([]string, model.MaxReplays)
	copy(replays, r.Replays)
	res, err := tx.NewUpdate().
		Model((*matchRow)(nil)).
		Set("played = ?", true).
		Set("score1 = ?", r.Score.Team1).
		Set("score2 = ?", r.Score.Team2).
		Set("replay1 = ?", nullable(replays[0])).
		Set("replay2 = ?", nullable(replays[1])).
		Set("replay3 = ?", nullable(replays[2])).
		Set("submitted_by = ?", r.Submitter).
		Set("approved_by = ?", nullable(r.Reviewer)).
		Set("played_at = ?", now).
		Where("id = ?", r.MatchID).
		Where("played = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update match %s: %w", r.MatchID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyPlayed, r.MatchID)
	}
	return nil
}

func writeRating(ctx context.Context, tx bun.Tx, p model.Player, value int, now time.Time) error {
	res, err := tx.NewUpdate().
		Model((*playerRow)(nil)).
		Set("rating = ?", value).
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("identity = ?", p.Identity).
		Where("version = ?", p.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update rating %s: %w", p.Identity, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("%w: %s", ErrStaleRating, p.Identity)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
