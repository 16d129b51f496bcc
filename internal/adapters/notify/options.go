package notify

import (
	"net/http"
	"time"

	"github.com/okian/league/pkg/logger"
)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used by the bus and its router.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithHTTPClient sets the client used for webhook posts.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bus) {
		if c != nil {
			b.client = c
		}
	}
}

// WithModerationWebhook posts review requests to url.
func WithModerationWebhook(url string) Option {
	return func(b *Bus) { b.moderationURL = url }
}

// WithAnnouncementWebhook posts leaderboard announcements to url.
func WithAnnouncementWebhook(url string) Option {
	return func(b *Bus) { b.announceURL = url }
}

// WithInboxSize caps the notices kept per recipient.
func WithInboxSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.inboxSize = n
		}
	}
}

// WithRetry sets how often a failed delivery is retried.
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(b *Bus) {
		if maxRetries >= 0 {
			b.maxRetries = maxRetries
		}
		if interval > 0 {
			b.retryInterval = interval
		}
	}
}
