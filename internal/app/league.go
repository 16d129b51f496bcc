package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/league/internal/adapters/mq/queue"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/adapters/sheets"
	"github.com/okian/league/internal/adapters/standings"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/types"
	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
)

// Register creates a player with the default rating. The bool is false when
// the identity was already registered; that is not an error.
func (s *Service) Register(ctx context.Context, identity, displayName string) (model.Player, bool, error) {
	_, ranks, err := s.components()
	if err != nil {
		return model.Player{}, false, err
	}
	p, created, err := s.store.RegisterPlayer(ctx, identity, displayName)
	if err != nil {
		return model.Player{}, false, err
	}
	if created {
		ranks.Set(ctx, p)
		s.logger.Info(ctx, "player registered", logger.String("player", identity))
	}
	return p, created, nil
}

// PlayerCard returns a player's rating, division and rank.
func (s *Service) PlayerCard(ctx context.Context, identity string) (types.PlayerCard, error) {
	_, ranks, err := s.components()
	if err != nil {
		return types.PlayerCard{}, err
	}
	p, err := s.store.Player(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return types.PlayerCard{}, fmt.Errorf("%w: %s", ErrNotRegistered, identity)
	}
	if err != nil {
		return types.PlayerCard{}, err
	}
	card := types.PlayerCard{
		PlayerID:    p.Identity,
		DisplayName: p.DisplayName,
		Rating:      p.Rating,
		Division:    p.Division,
	}
	if e, err := ranks.Rank(ctx, identity); err == nil {
		card.Rank = e.Rank
	}
	return card, nil
}

// AllPlayers returns page (1-based) of every player, best rated first.
func (s *Service) AllPlayers(ctx context.Context, page int) (types.Page, error) {
	_, ranks, err := s.components()
	if err != nil {
		return types.Page{}, err
	}
	if page < 1 {
		return types.Page{}, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	players, total, err := s.store.Players(ctx, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return types.Page{}, err
	}
	out := types.Page{
		Page:       page,
		TotalPages: max(1, (total+s.pageSize-1)/s.pageSize),
		Total:      total,
		Players:    make([]types.Entry, 0, len(players)),
	}
	for _, p := range players {
		e := types.Entry{PlayerID: p.Identity, DisplayName: p.DisplayName, Rating: p.Rating, Division: p.Division}
		if ranked, err := ranks.Rank(ctx, p.Identity); err == nil {
			e.Rank = ranked.Rank
		}
		out.Players = append(out.Players, e)
	}
	return out, nil
}

// AssignDivision moves every listed player into division. Either all are
// moved or none.
func (s *Service) AssignDivision(ctx context.Context, identities []string, division string) ([]model.Player, error) {
	_, ranks, err := s.components()
	if err != nil {
		return nil, err
	}
	d, err := s.division(division)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(identities))
	for _, id := range identities {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	moved, err := s.store.AssignDivision(ctx, ids, d.Name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotRegistered, err)
	}
	if err != nil {
		return nil, err
	}
	ranks.Set(ctx, moved...)
	s.logger.Info(ctx, "division assigned", logger.String("division", d.Name), logger.Int("players", len(moved)))
	return moved, nil
}

// RatingHistory returns the latest rating changes of a player.
func (s *Service) RatingHistory(ctx context.Context, identity string, limit int) ([]model.RatingChange, error) {
	if _, err := s.store.Player(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotRegistered, identity)
		}
		return nil, err
	}
	return s.store.RatingHistory(ctx, identity, limit)
}

// IngestDivision loads one division's schedule.
func (s *Service) IngestDivision(ctx context.Context, division string) (schedule.Report, error) {
	if _, _, err := s.components(); err != nil {
		return schedule.Report{}, err
	}
	if s.ingestor == nil {
		return schedule.Report{}, ErrNoSchedule
	}
	return s.ingestor.Ingest(ctx, division)
}

// StartSeason ingests every configured division and queues an export of the
// match table. A division that fails is reported and skipped; the others are
// still ingested.
func (s *Service) StartSeason(ctx context.Context) ([]schedule.Report, error) {
	if _, _, err := s.components(); err != nil {
		return nil, err
	}
	if s.ingestor == nil {
		return nil, ErrNoSchedule
	}
	var (
		reports []schedule.Report
		errs    []error
	)
	for _, d := range s.divisions {
		rep, err := s.ingestor.Ingest(ctx, d.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		reports = append(reports, rep)
	}
	if len(reports) > 0 {
		if err := s.RequestExport(ctx, queue.Job{Reason: "season"}); err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// RequestExport queues a re-export of the match table. Without a publisher
// it is a no-op.
func (s *Service) RequestExport(ctx context.Context, job queue.Job) error {
	if s.publisher == nil {
		return nil
	}
	if !s.queue.Enqueue(ctx, job) {
		return ErrQueueFull
	}
	return nil
}

// Export writes the full match table to the publisher. The export workers
// call it; the CLI calls it directly.
func (s *Service) Export(ctx context.Context, reason string) error {
	if s.publisher == nil {
		return fmt.Errorf("%w: publisher", ErrMissingDependency)
	}
	matches, err := s.store.Matches(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := s.publisher.Publish(ctx, s.exportKey, sheets.MatchTable(matches)); err != nil {
		return fmt.Errorf("publish %s: %w", s.exportKey, err)
	}
	s.logger.Info(ctx, "match table exported",
		logger.String("reason", reason),
		logger.Int("matches", len(matches)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// TopN returns the n best players.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	_, ranks, err := s.components()
	if err != nil {
		return nil, err
	}
	return ranks.TopN(ctx, n)
}

// Rank returns a player's leaderboard entry.
func (s *Service) Rank(ctx context.Context, identity string) (types.Entry, error) {
	_, ranks, err := s.components()
	if err != nil {
		return types.Entry{}, err
	}
	e, err := ranks.Rank(ctx, identity)
	if errors.Is(err, standings.ErrNotFound) {
		return types.Entry{}, fmt.Errorf("%w: %s", ErrNotRegistered, identity)
	}
	return e, err
}

// onCommit refreshes the two rated players and queues an export.
func (s *Service) onCommit(ctx context.Context, r workflow.Receipt) {
	var changed []model.Player
	for _, id := range []string{r.Submitter.Identity, r.Opponent.Identity} {
		p, err := s.store.Player(ctx, id)
		if err != nil {
			s.logger.Warn(ctx, "refresh standings", logger.String("player", id), logger.Error(err))
			continue
		}
		changed = append(changed, p)
	}
	s.standings.Set(ctx, changed...)

	if err := s.RequestExport(ctx, queue.Job{Reason: "commit", MatchID: r.Match.ID}); err != nil {
		s.logger.Warn(ctx, "export not queued", logger.String("match", r.Match.ID), logger.Error(err))
	}
}

// Info returns the command help text.
func (s *Service) Info() string {
	return strings.Join([]string{
		"Available commands:",
		"/player_card - Displays your current rating and division.",
		"/register - Register as a new player.",
		"/submit_match - Walks you through submitting a match result.",
	}, "\n")
}
