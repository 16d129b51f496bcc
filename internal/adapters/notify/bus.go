// Package notify delivers moderation requests, submitter notices and
// leaderboard announcements over an in-process message bus.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

// Topics carried by the bus.
const (
	TopicModeration  = "league.moderation"
	TopicSubmitter   = "league.submitter"
	TopicLeaderboard = "league.leaderboard"
)

// Well-known inbox recipients.
const (
	Moderators    = "moderators"
	Announcements = "announcements"
)

const (
	defaultInboxSize     = 20
	defaultMaxRetries    = 3
	defaultRetryInterval = 100 * time.Millisecond
	routerCloseTimeout   = 2 * time.Second
	webhookTimeout       = 5 * time.Second
)

// Notice is one message on the bus.
type Notice struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Recipient string    `json:"recipient"`
	Division  string    `json:"division,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

// Bus implements workflow.Messenger on top of a watermill gochannel.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	client *http.Client
	logger logger.Logger

	moderationURL string
	announceURL   string
	maxRetries    int
	retryInterval time.Duration
	inboxSize     int

	mu      sync.RWMutex
	inboxes map[string][]Notice
}

var _ workflow.Messenger = (*Bus)(nil)

// New wires the pub/sub and its handlers. Call Run to start delivery.
func New(opts ...Option) (*Bus, error) {
	b := &Bus{
		client:        &http.Client{Timeout: webhookTimeout},
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
		inboxSize:     defaultInboxSize,
		inboxes:       make(map[string][]Notice),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("notify")
	}

	wl := wmLogger{l: b.logger}
	b.pubsub = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wl)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, wl)
	if err != nil {
		return nil, fmt.Errorf("notify: router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	router.AddNoPublisherHandler("moderation", TopicModeration, b.pubsub, b.settle("moderation", b.deliverModeration))
	router.AddNoPublisherHandler("submitter", TopicSubmitter, b.pubsub, b.settle("submitter", b.deliverSubmitter))
	router.AddNoPublisherHandler("leaderboard", TopicLeaderboard, b.pubsub, b.settle("leaderboard", b.deliverAnnouncement))
	b.router = router
	return b, nil
}

// Run blocks delivering messages until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubsub.Close()
}

// RequestReview asks the moderators to review a submission.
func (b *Bus) RequestReview(ctx context.Context, s workflow.Session, text string) error {
	return b.publish(ctx, TopicModeration, Notice{
		Recipient: Moderators,
		Division:  s.Division,
		SessionID: s.ID,
		Text:      text,
	})
}

// NotifySubmitter tells the submitter what happened to their submission.
func (b *Bus) NotifySubmitter(ctx context.Context, s workflow.Session, text string) error {
	return b.publish(ctx, TopicSubmitter, Notice{
		Recipient: s.Submitter,
		Division:  s.Division,
		SessionID: s.ID,
		Text:      text,
	})
}

// Announce posts text to the announcement channel.
func (b *Bus) Announce(ctx context.Context, text string) error {
	if err := b.publish(ctx, TopicLeaderboard, Notice{Recipient: Announcements, Text: text}); err != nil {
		return err
	}
	metrics.RecordLeaderboardPublished()
	return nil
}

// Inbox returns the latest notices for a recipient, oldest first.
func (b *Bus) Inbox(recipient string) []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Notice(nil), b.inboxes[recipient]...)
}

func (b *Bus) publish(ctx context.Context, topic string, n Notice) error {
	n.ID = watermill.NewUUID()
	n.Topic = topic
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode: %w", err)
	}
	msg := message.NewMessage(n.ID, payload)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		metrics.RecordErrorByComponent("notify", "publish")
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

// settle retries a delivery and then acks regardless, so a dead webhook
// never wedges the subscription.
func (b *Bus) settle(name string, deliver func(context.Context, Notice) error) message.NoPublishHandlerFunc {
	retry := middleware.Retry{
		MaxRetries:      b.maxRetries,
		InitialInterval: b.retryInterval,
		Logger:          wmLogger{l: b.logger},
	}
	h := retry.Middleware(func(msg *message.Message) ([]*message.Message, error) {
		var n Notice
		if err := json.Unmarshal(msg.Payload, &n); err != nil {
			return nil, fmt.Errorf("notify: decode %s: %w", msg.UUID, err)
		}
		return nil, deliver(msg.Context(), n)
	})
	return func(msg *message.Message) error {
		if _, err := h(msg); err != nil {
			metrics.RecordErrorByComponent("notify", name)
			b.logger.Error(msg.Context(), "delivery failed",
				logger.String("handler", name),
				logger.String("message_id", msg.UUID),
				logger.Error(err),
			)
		}
		return nil
	}
}

func (b *Bus) deliverModeration(ctx context.Context, n Notice) error {
	b.keep(Moderators, n)
	return b.post(ctx, b.moderationURL, n)
}

func (b *Bus) deliverSubmitter(_ context.Context, n Notice) error {
	b.keep(n.Recipient, n)
	return nil
}

func (b *Bus) deliverAnnouncement(ctx context.Context, n Notice) error {
	b.keep(Announcements, n)
	return b.post(ctx, b.announceURL, n)
}

// keep is idempotent per notice id so retries do not duplicate inbox rows.
func (b *Bus) keep(recipient string, n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	box := b.inboxes[recipient]
	for _, existing := range box {
		if existing.ID == n.ID {
			return
		}
	}
	box = append(box, n)
	if len(box) > b.inboxSize {
		box = box[len(box)-b.inboxSize:]
	}
	b.inboxes[recipient] = box
}

func (b *Bus) post(ctx context.Context, url string, n Notice) error {
	if url == "" {
		b.logger.Info(ctx, "notice",
			logger.String("topic", n.Topic),
			logger.String("recipient", n.Recipient),
			logger.String("text", n.Text),
		)
		return nil
	}
	body, err := json.Marshal(map[string]string{"content": n.Text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ErrWebhook, resp.Status)
	}
	return nil
}
