package service

import (
	"strings"
	"time"

	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/adapters/sheets"
	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the player and match store. Required.
func WithStore(st *repository.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithSessions sets the session table. Defaults to an in-memory table.
func WithSessions(st workflow.Store) Option {
	return func(s *Service) { s.sessions = st }
}

// WithNotifier sets where review requests, notices and announcements go. Required.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithScheduleSource sets where division schedules are read from.
func WithScheduleSource(src schedule.Source) Option {
	return func(s *Service) { s.source = src }
}

// WithPublisher sets where the match table is exported to under key.
func WithPublisher(p sheets.Publisher, key string) Option {
	return func(s *Service) {
		s.publisher = p
		if key != "" {
			s.exportKey = key
		}
	}
}

// WithDivision registers a known division, its sheet key and k-factor.
func WithDivision(name, sheetKey string, k int) Option {
	return func(s *Service) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		s.divisions = append(s.divisions, Division{Name: name, SheetKey: sheetKey, KFactor: k})
	}
}

// WithDefaultKFactor sets the k-factor of divisions without one.
func WithDefaultKFactor(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

// WithSessionTTLs bounds the submitter's flow and the moderator's review.
func WithSessionTTLs(session, review time.Duration) Option {
	return func(s *Service) {
		if session > 0 {
			s.sessionTTL = session
		}
		if review > 0 {
			s.reviewTTL = review
		}
	}
}

// WithJanitorInterval sets how often expired sessions are swept.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.janitorInterval = d
		}
	}
}

// WithLeaderboard sets the period and size of the leaderboard post. A zero
// interval disables the job.
func WithLeaderboard(interval time.Duration, size int) Option {
	return func(s *Service) {
		if interval >= 0 {
			s.leaderboardInterval = interval
		}
		if size > 0 {
			s.leaderboardSize = size
		}
	}
}

// WithPageSize sets the all-players page size.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithQueueSize sets the capacity of the export queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of export workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithDedupeSize sets the size of the interaction dedupe cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock overrides the time source of the workflow.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
