package workflow

import (
	"time"

	"github.com/okian/league/internal/domain/dedupe"
	"github.com/okian/league/internal/domain/rating"
	"github.com/okian/league/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRater sets the rating engine used at commit time.
func WithRater(r *rating.Engine) Option {
	return func(e *Engine) {
		if r != nil {
			e.rater = r
		}
	}
}

// WithDeduper sets the interaction id deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(e *Engine) {
		if d != nil {
			e.deduper = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSessionTTL bounds the submitter's part of the flow.
func WithSessionTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sessionTTL = d
		}
	}
}

// WithReviewTTL bounds how long a confirmed submission waits for review.
func WithReviewTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.reviewTTL = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCommitHook registers fn to run after every committed result.
func WithCommitHook(fn CommitHook) Option {
	return func(e *Engine) {
		if fn != nil {
			e.hooks = append(e.hooks, fn)
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}
