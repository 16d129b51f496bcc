package seasonsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/okian/league/internal/adapters/http/api"
	"github.com/okian/league/pkg/logger"
)

const (
	tokenTTL            = time.Hour
	directoryPermission = 0o750
	adminIdentity       = "seasonsim-admin"
	moderatorIdentity   = "seasonsim-moderator"
)

// ErrInvalidConfig reports an unusable simulation config.
var ErrInvalidConfig = errors.New("invalid simulation config")

type runner struct {
	cfg       *Config
	client    *client
	log       logger.Logger
	players   []player
	admin     string
	moderator string
	stats     *Stats
	mu        sync.Mutex
}

// Run executes a complete simulated season and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(uint64(seed))

	r := &runner{
		cfg:    cfg,
		client: newClient(cfg.BaseURL, cfg.Timeout),
		log:    logger.Get().Named("seasonsim"),
		stats:  &Stats{StartTime: time.Now()},
	}
	r.log.Info(ctx, "starting season simulation",
		logger.String("url", cfg.BaseURL),
		logger.String("division", cfg.Division),
		logger.Int("players", cfg.Players),
		logger.Int("submissions", cfg.Submissions),
		logger.Int64("seed", seed),
	)

	auth := api.NewAuthenticator(cfg.Secret)
	if err := r.issueTokens(auth, generatePlayers(faker, cfg.Players)); err != nil {
		return nil, err
	}
	if err := r.register(ctx); err != nil {
		return nil, err
	}
	if err := r.assign(ctx); err != nil {
		return nil, err
	}
	if cfg.StartSeason {
		if err := r.startSeason(ctx); err != nil {
			return nil, err
		}
	}

	r.submitAll(ctx, generatePlans(faker, cfg.Submissions, len(r.players), cfg.ApproveRatio))

	if err := r.verify(ctx); err != nil {
		return r.stats, err
	}

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.log.Info(ctx, "season simulation completed",
		logger.Int("approved", r.stats.Approved),
		logger.Int("rejected", r.stats.Rejected),
		logger.Int("conflicts", r.stats.Conflicts),
		logger.Int("failed", r.stats.Failed),
		logger.Bool("exhausted", r.stats.Exhausted),
		logger.Duration("took", r.stats.Duration),
	)
	if cfg.OutputFile != "" {
		if err := writeReport(cfg.OutputFile, r.stats); err != nil {
			return r.stats, err
		}
	}
	return r.stats, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg == nil:
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	case cfg.BaseURL == "":
		return fmt.Errorf("%w: base url required", ErrInvalidConfig)
	case cfg.Secret == "":
		return fmt.Errorf("%w: secret required", ErrInvalidConfig)
	case cfg.Division == "":
		return fmt.Errorf("%w: division required", ErrInvalidConfig)
	case cfg.Players < 2:
		return fmt.Errorf("%w: at least two players required", ErrInvalidConfig)
	case cfg.Workers < 1:
		return fmt.Errorf("%w: at least one worker required", ErrInvalidConfig)
	case cfg.ApproveRatio < 0 || cfg.ApproveRatio > 1:
		return fmt.Errorf("%w: approve ratio must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}

func (r *runner) issueTokens(auth *api.Authenticator, players []player) error {
	var err error
	if r.admin, err = auth.Issue(adminIdentity, "Season Admin", api.RoleAdmin, tokenTTL); err != nil {
		return err
	}
	if r.moderator, err = auth.Issue(moderatorIdentity, "Season Moderator", api.RoleModerator, tokenTTL); err != nil {
		return err
	}
	for i := range players {
		if players[i].Token, err = auth.Issue(players[i].Identity, players[i].Name, api.RolePlayer, tokenTTL); err != nil {
			return err
		}
	}
	r.players = players
	return nil
}

func (r *runner) register(ctx context.Context) error {
	for _, p := range r.players {
		if err := r.client.do(ctx, http.MethodPost, "/players/register", p.Token, nil, nil); err != nil {
			return fmt.Errorf("register %s: %w", p.Identity, err)
		}
		r.stats.PlayersRegistered++
	}
	return nil
}

func (r *runner) assign(ctx context.Context) error {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.Identity)
	}
	path := "/divisions/" + url.PathEscape(r.cfg.Division) + "/players"
	if err := r.client.do(ctx, http.MethodPost, path, r.admin, map[string][]string{"player_ids": ids}, nil); err != nil {
		return fmt.Errorf("assign division: %w", err)
	}
	return nil
}

func (r *runner) startSeason(ctx context.Context) error {
	var rep seasonReport
	if err := r.client.do(ctx, http.MethodPost, "/season/start", r.admin, nil, &rep); err != nil {
		return fmt.Errorf("start season: %w", err)
	}
	for _, d := range rep.Divisions {
		r.stats.MatchesIngested += d.Matches
	}
	for _, e := range rep.Errors {
		r.log.Warn(ctx, "division not ingested", logger.String("error", e))
	}
	return nil
}

// submitAll runs plans on a worker pool until they run out or the division
// has nothing left to submit.
func (r *runner) submitAll(ctx context.Context, plans []plan) {
	jobs := make(chan plan)
	var exhausted atomic.Bool
	var wg sync.WaitGroup

	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				outcome, err := r.submit(ctx, p)
				r.record(ctx, outcome, err)
				if codeOf(err) == "nothing_to_submit" {
					exhausted.Store(true)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range plans {
			if exhausted.Load() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()
	wg.Wait()
	r.stats.Exhausted = exhausted.Load()
}

func (r *runner) record(ctx context.Context, outcome string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err == nil && outcome == "committed":
		r.stats.Approved++
	case err == nil && outcome == "rejected":
		r.stats.Rejected++
	case codeOf(err) == "nothing_to_submit":
	case codeOf(err) == "conflict":
		r.stats.Conflicts++
	default:
		r.stats.Failed++
		r.log.Warn(ctx, "submission failed", logger.String("outcome", outcome), logger.Error(err))
	}
}

// submit walks one submission through every step and the review.
func (r *runner) submit(ctx context.Context, p plan) (string, error) {
	pl := r.players[p.Submitter]

	var cur prompt
	if err := r.client.do(ctx, http.MethodPost, "/submissions", pl.Token, map[string]string{"division": r.cfg.Division}, &cur); err != nil {
		return "", err
	}
	r.mu.Lock()
	r.stats.Started++
	r.mu.Unlock()

	id := cur.SessionID
	steps := "/submissions/" + url.PathEscape(id) + "/steps"
	for _, n := range []int{p.Match, p.Opponent, p.Score} {
		value, ok := pick(cur.Choices, n)
		if !ok {
			return cur.State, fmt.Errorf("no choices offered in %s", cur.State)
		}
		if err := r.step(ctx, pl.Token, steps, map[string]any{"value": value}, &cur); err != nil {
			return cur.State, err
		}
	}
	if err := r.step(ctx, pl.Token, steps, map[string]any{"replays": p.Replays}, &cur); err != nil {
		return cur.State, err
	}
	if err := r.step(ctx, pl.Token, steps, map[string]any{"accept": true}, &cur); err != nil {
		return cur.State, err
	}

	review := map[string]any{"interaction_id": uuid.NewString(), "accept": p.Approve}
	if err := r.client.do(ctx, http.MethodPost, "/reviews/"+url.PathEscape(id), r.moderator, review, &cur); err != nil {
		return cur.State, err
	}
	if p.Approve {
		return "committed", nil
	}
	return "rejected", nil
}

func (r *runner) step(ctx context.Context, token, path string, body map[string]any, out *prompt) error {
	body["interaction_id"] = uuid.NewString()
	return r.client.do(ctx, http.MethodPost, path, token, body, out)
}

func writeReport(path string, stats *Stats) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
