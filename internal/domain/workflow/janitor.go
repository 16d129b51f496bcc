package workflow

import (
	"context"
	"time"

	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

// Sweep drops every expired session and reports how many it removed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	expired, err := e.store.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}
	for _, s := range expired {
		metrics.RecordSessionFinished("expired")
		if s.State == StatePendingReview {
			e.notify(ctx, s, "Your submission for "+s.MatchLabel+" expired before a moderator reviewed it.")
		}
	}
	if n, err := e.store.Count(ctx); err == nil {
		metrics.UpdateActiveSessions(n)
	}
	if len(expired) > 0 {
		e.logger.Info(ctx, "expired sessions swept", logger.Int("count", len(expired)))
	}
	return len(expired), nil
}

// RunJanitor sweeps every interval until ctx is done.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil {
				e.logger.Error(ctx, "sweep sessions", logger.Error(err))
			}
		}
	}
}
