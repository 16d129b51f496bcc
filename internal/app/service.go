// Package service wires the league's components together and implements
// the operations exposed over HTTP and the admin CLI.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/league/internal/adapters/mq/queue"
	"github.com/okian/league/internal/adapters/mq/worker"
	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/adapters/sessions"
	"github.com/okian/league/internal/adapters/sheets"
	"github.com/okian/league/internal/adapters/standings"
	"github.com/okian/league/internal/domain/dedupe"
	"github.com/okian/league/internal/domain/rating"
	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

// Division is one configured league tier.
type Division struct {
	Name     string
	SheetKey string
	KFactor  int
}

// Notifier delivers workflow messages and leaderboard announcements.
type Notifier interface {
	workflow.Messenger
	Announce(ctx context.Context, text string) error
	Inbox(recipient string) []notify.Notice
}

// Service implements the league operations.
type Service struct {
	mu sync.RWMutex

	// Dependencies
	store     *repository.Store
	sessions  workflow.Store
	notifier  Notifier
	source    schedule.Source
	publisher sheets.Publisher

	// Components built on Start
	standings *standings.Standings
	engine    *workflow.Engine
	ingestor  *schedule.Ingestor
	queue     *queue.InMemoryQueue
	pool      *worker.Pool

	// Configuration
	divisions           []Division
	defaultK            int
	exportKey           string
	sessionTTL          time.Duration
	reviewTTL           time.Duration
	janitorInterval     time.Duration
	leaderboardInterval time.Duration
	leaderboardSize     int
	pageSize            int
	queueSize           int
	workerCount         int
	dedupeSize          int
	now                 func() time.Time

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. Dependencies are checked on Start.
func New(opts ...Option) *Service {
	s := &Service{
		defaultK:            24,
		exportKey:           "matches.xlsx",
		sessionTTL:          15 * time.Minute,
		reviewTTL:           72 * time.Hour,
		janitorInterval:     time.Minute,
		leaderboardInterval: 24 * time.Hour,
		leaderboardSize:     20,
		pageSize:            20,
		queueSize:           64,
		workerCount:         1,
		dedupeSize:          50_000,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and launches the background jobs.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	switch {
	case s.store == nil:
		return fmt.Errorf("%w: store", ErrMissingDependency)
	case s.notifier == nil:
		return fmt.Errorf("%w: notifier", ErrMissingDependency)
	}
	if s.sessions == nil {
		s.sessions = sessions.NewMemoryStore()
	}

	players, err := s.store.AllPlayers(ctx)
	if err != nil {
		return fmt.Errorf("load standings: %w", err)
	}
	s.standings = standings.New(standings.WithClock(s.now))
	s.standings.Load(ctx, players)

	kf := make(map[string]int, len(s.divisions))
	ingestOpts := []schedule.Option{schedule.WithLogger(s.logger.Named("schedule"))}
	for _, d := range s.divisions {
		if d.KFactor > 0 {
			kf[d.Name] = d.KFactor
		}
		ingestOpts = append(ingestOpts, schedule.WithDivision(d.Name, d.SheetKey))
	}
	rateOpts := []rating.Option{rating.WithDefaultK(s.defaultK)}
	if len(kf) > 0 {
		rateOpts = append(rateOpts, rating.WithKFactors(kf))
	}
	rater := rating.NewEngine(rateOpts...)

	s.engine = workflow.New(s.sessions, ledger{store: s.store}, s.notifier,
		workflow.WithRater(rater),
		workflow.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
		workflow.WithSessionTTL(s.sessionTTL),
		workflow.WithReviewTTL(s.reviewTTL),
		workflow.WithClock(s.now),
		workflow.WithLogger(s.logger.Named("workflow")),
		workflow.WithCommitHook(s.onCommit),
	)
	if s.source != nil {
		s.ingestor = schedule.NewIngestor(s.source, s.store, ingestOpts...)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	if s.publisher != nil {
		s.pool = worker.NewPool(s.workerCount, s.queue, s, worker.WithLogger(s.logger.Named("export")))
		s.pool.Start(runCtx)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.engine.RunJanitor(runCtx, s.janitorInterval)
	}()
	if s.leaderboardInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLeaderboard(runCtx)
		}()
	}

	s.started = true
	s.logger.Info(ctx, "league service started",
		logger.Int("players", len(players)),
		logger.Int("divisions", len(s.divisions)),
		logger.Bool("export", s.publisher != nil),
		logger.Bool("schedules", s.source != nil),
	)
	return nil
}

// Stop drains the export queue and stops the background jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, q, cancel := s.pool, s.queue, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping league service...")

	if pool != nil {
		shutdownCtx, done := context.WithTimeout(ctx, 10*time.Second)
		if err := pool.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "export pool shutdown", logger.Error(err))
		}
		done()
	} else {
		_ = q.Close()
	}
	cancel()
	s.wg.Wait()

	s.logger.Info(ctx, "league service stopped")
}

// Ready reports whether Start completed.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return ErrNotStarted
	}
	return s.store.Ping(ctx)
}

// Divisions returns the configured divisions.
func (s *Service) Divisions() []Division {
	return append([]Division(nil), s.divisions...)
}

// division resolves name case-insensitively to the configured division.
func (s *Service) division(name string) (Division, error) {
	for _, d := range s.divisions {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return Division{}, fmt.Errorf("%w: %q", ErrUnknownDivision, name)
}

// components returns the started components or ErrNotStarted.
func (s *Service) components() (*workflow.Engine, *standings.Standings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.engine, s.standings, nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"divisions":   len(s.divisions),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if !s.started {
		return stats
	}
	stats["queueLength"] = s.queue.Len(ctx)
	stats["rankedPlayers"] = s.standings.Count(ctx)
	if n, err := s.sessions.Count(ctx); err == nil {
		stats["activeSessions"] = n
		metrics.UpdateActiveSessions(n)
	}
	if snap := s.standings.Snapshot(); snap != nil {
		stats["standingsAt"] = snap.TakenAt
	}
	return stats
}
