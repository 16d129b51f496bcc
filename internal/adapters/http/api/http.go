// Package api exposes the league over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/okian/league/internal/adapters/mq/queue"
	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/types"
	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

const maxBodyBytes = 1 << 16

// PlayerDependencies covers self-service and admin player operations.
type PlayerDependencies interface {
	Register(ctx context.Context, identity, displayName string) (model.Player, bool, error)
	PlayerCard(ctx context.Context, identity string) (types.PlayerCard, error)
	AllPlayers(ctx context.Context, page int) (types.Page, error)
	AssignDivision(ctx context.Context, identities []string, division string) ([]model.Player, error)
	RatingHistory(ctx context.Context, identity string, limit int) ([]model.RatingChange, error)
	Notices(recipient string) []notify.Notice
}

// SeasonDependencies covers schedule ingestion and export.
type SeasonDependencies interface {
	StartSeason(ctx context.Context) ([]schedule.Report, error)
	RequestExport(ctx context.Context, job queue.Job) error
}

// SubmissionDependencies covers the submission and review flow.
type SubmissionDependencies interface {
	StartSubmission(ctx context.Context, division, submitter string) (workflow.Prompt, error)
	Step(ctx context.Context, ev workflow.Event) (workflow.Prompt, error)
	Submission(ctx context.Context, id, actor string) (workflow.Prompt, error)
	Review(ctx context.Context, ev workflow.Event) (workflow.Prompt, error)
	PendingReviews(ctx context.Context) ([]types.PendingReview, error)
}

// LeaderboardDependencies covers ranking reads and the announcement.
type LeaderboardDependencies interface {
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	Rank(ctx context.Context, identity string) (types.Entry, error)
	PublishLeaderboard(ctx context.Context) error
}

// StatsProvider exposes liveness and service statistics.
type StatsProvider interface {
	Ready() bool
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]any
	Info() string
}

// Dependencies bundles everything the handlers need.
type Dependencies interface {
	PlayerDependencies
	SeasonDependencies
	SubmissionDependencies
	LeaderboardDependencies
	StatsProvider
}

// Server wires HTTP routes for the league API.
type Server struct {
	deps     Dependencies
	auth     *Authenticator
	limiter  *KeyedRateLimiter
	maxLimit int
	logger   logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits each caller to r requests per second with burst b.
func WithRateLimit(r float64, b int) Option {
	return func(s *Server) {
		if r > 0 && b > 0 {
			s.limiter = NewKeyedRateLimiter(rate.Limit(r), b)
		}
	}
}

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the API server.
func NewServer(deps Dependencies, auth *Authenticator, opts ...Option) *Server {
	s := &Server{deps: deps, auth: auth, maxLimit: 100}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Register attaches all routes to r.
func (s *Server) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(Metrics)

		r.Get("/healthz", s.handleHealth)
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		r.Get("/info", s.handleInfo)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/rank/{playerID}", s.handleRank)

		r.Group(s.protected)
	})
}

// protected holds the routes that need a bearer token.
func (s *Server) protected(r chi.Router) {
	r.Use(s.auth.Authenticate)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Post("/players/register", s.handleRegister)
	r.Get("/players/me", s.handlePlayerCard)
	r.Get("/players/me/history", s.handleHistory)
	r.Get("/notices", s.handleNotices)

	r.Post("/submissions", s.handleStartSubmission)
	r.Get("/submissions/{sessionID}", s.handleGetSubmission)
	r.Post("/submissions/{sessionID}/steps", s.handleStep)

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(RoleModerator))
		r.Get("/reviews", s.handlePendingReviews)
		r.Post("/reviews/{sessionID}", s.handleReview)
		r.Get("/notices/moderation", s.handleModerationNotices)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(RoleAdmin))
		r.Get("/players", s.handleAllPlayers)
		r.Post("/divisions/{division}/players", s.handleAssignDivision)
		r.Post("/season/start", s.handleStartSeason)
		r.Post("/season/export", s.handleExport)
		r.Post("/leaderboard/publish", s.handlePublishLeaderboard)
		r.Get("/stats", s.handleStats)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err and logs it when it is a server error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeErr(w, err)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func principal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
