package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/workflow"
)

// ledger exposes the repository to the workflow and translates its errors.
type ledger struct {
	store *repository.Store
}

var _ workflow.Ledger = ledger{}

func (l ledger) OpenMatches(ctx context.Context, division string) ([]model.Match, error) {
	return l.store.OpenMatches(ctx, division)
}

func (l ledger) Roster(ctx context.Context, division string) ([]model.Player, error) {
	return l.store.Roster(ctx, division)
}

func (l ledger) Player(ctx context.Context, identity string) (model.Player, error) {
	p, err := l.store.Player(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Player{}, fmt.Errorf("%w: %s", workflow.ErrNotRegistered, identity)
	}
	return p, err
}

func (l ledger) Commit(ctx context.Context, c workflow.Commit, rate workflow.RateFunc) (workflow.Receipt, error) {
	r, err := l.store.CommitResult(ctx, repository.Result{
		MatchID:   c.MatchID,
		Submitter: c.Submitter,
		Opponent:  c.Opponent,
		Reviewer:  c.Reviewer,
		Score:     c.Score,
		Replays:   c.Replays,
	}, repository.RateFunc(rate))
	switch {
	case errors.Is(err, repository.ErrAlreadyPlayed):
		return workflow.Receipt{}, fmt.Errorf("%w: %s", workflow.ErrAlreadyPlayed, c.MatchID)
	case err != nil:
		return workflow.Receipt{}, err
	}
	return workflow.Receipt{Match: r.Match, Submitter: r.Submitter, Opponent: r.Opponent}, nil
}
