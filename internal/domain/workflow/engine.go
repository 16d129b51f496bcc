package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/league/internal/domain/dedupe"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/rating"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

const (
	defaultSessionTTL = 15 * time.Minute
	defaultReviewTTL  = 72 * time.Hour
)

// CommitHook runs after a result was committed.
type CommitHook func(ctx context.Context, r Receipt)

// Event is one client interaction with a session.
type Event struct {
	SessionID string
	// InteractionID identifies the client action; repeats are ignored.
	InteractionID string
	Actor         string
	Value         string
	Replays       []string
	Accept        bool
}

// Engine runs the submission state machine.
type Engine struct {
	store     Store
	ledger    Ledger
	messenger Messenger
	rater     *rating.Engine
	deduper   dedupe.Deduper
	logger    logger.Logger
	hooks     []CommitHook

	now        func() time.Time
	newID      func() string
	sessionTTL time.Duration
	reviewTTL  time.Duration
}

// New wires an Engine.
func New(store Store, ledger Ledger, messenger Messenger, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		ledger:     ledger,
		messenger:  messenger,
		now:        time.Now,
		newID:      uuid.NewString,
		sessionTTL: defaultSessionTTL,
		reviewTTL:  defaultReviewTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rater == nil {
		e.rater = rating.NewEngine()
	}
	if e.deduper == nil {
		e.deduper = dedupe.NewInMemoryDeduper()
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("workflow")
	}
	return e
}

// Start opens a session for submitter in division and offers the unplayed
// matches of the earliest open week and the week after it.
func (e *Engine) Start(ctx context.Context, division, submitter string) (Prompt, error) {
	division = strings.TrimSpace(division)
	if _, err := e.ledger.Player(ctx, submitter); err != nil {
		return Prompt{}, fmt.Errorf("start: %w", err)
	}
	open, err := e.ledger.OpenMatches(ctx, division)
	if err != nil {
		return Prompt{}, fmt.Errorf("start: open matches: %w", err)
	}
	visible := currentWeeks(open)
	if len(visible) == 0 {
		return Prompt{}, fmt.Errorf("%w: %s", ErrNoOpenMatches, division)
	}

	choices := make([]Choice, 0, len(visible))
	for _, m := range visible {
		choices = append(choices, Choice{Label: m.Label(), Value: m.ID})
	}
	now := e.now()
	s := Session{
		ID:        e.newID(),
		Division:  division,
		Submitter: submitter,
		State:     StateSelectMatch,
		Offered:   choices,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(e.sessionTTL),
	}
	if err := e.store.Create(ctx, s); err != nil {
		return Prompt{}, fmt.Errorf("start: %w", err)
	}
	metrics.RecordSessionStarted(division)
	e.logger.Debug(ctx, "session started",
		logger.String("session", s.ID),
		logger.String("division", division),
		logger.String("submitter", submitter),
		logger.Int("offered", len(choices)))
	return render(s), nil
}

// currentWeeks keeps matches of the earliest week and the week after it.
func currentWeeks(open []model.Match) []model.Match {
	if len(open) == 0 {
		return nil
	}
	earliest := open[0].Week
	for _, m := range open {
		earliest = min(earliest, m.Week)
	}
	out := make([]model.Match, 0, len(open))
	for _, m := range open {
		if m.Week <= earliest+1 {
			out = append(out, m)
		}
	}
	return out
}

// Current renders the stored session.
func (e *Engine) Current(ctx context.Context, id string) (Prompt, error) {
	s, err := e.store.Get(ctx, id)
	if err != nil {
		return Prompt{}, err
	}
	if s.Expired(e.now()) {
		e.expire(ctx, s)
		return Prompt{}, ErrSessionExpired
	}
	return render(s), nil
}

// Session returns the stored session.
func (e *Engine) Session(ctx context.Context, id string) (Session, error) {
	return e.store.Get(ctx, id)
}

// PendingReviews lists submissions waiting for a moderator, oldest first.
func (e *Engine) PendingReviews(ctx context.Context) ([]Session, error) {
	return e.store.List(ctx, StatePendingReview)
}

// SelectMatch answers the first step and offers the division roster.
func (e *Engine) SelectMatch(ctx context.Context, id, actor, value string) (Prompt, error) {
	current, err := e.store.Get(ctx, id)
	if err != nil {
		return Prompt{}, err
	}
	opponents, err := e.opponents(ctx, current.Division, current.Submitter)
	if err != nil {
		return Prompt{}, err
	}
	return e.advance(ctx, id, actor, StateSelectMatch, func(s *Session) error {
		c, ok := s.offered(value)
		if !ok {
			return fmt.Errorf("%w: match %q", ErrNotOffered, value)
		}
		s.MatchID, s.MatchLabel = c.Value, c.Label
		s.Offered = opponents
		return moveTo(s, StateSelectOpponent)
	})
}

func (e *Engine) opponents(ctx context.Context, division, submitter string) ([]Choice, error) {
	roster, err := e.ledger.Roster(ctx, division)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	out := make([]Choice, 0, len(roster))
	for _, p := range roster {
		if p.Identity == submitter {
			continue
		}
		label := p.DisplayName
		if label == "" {
			label = p.Identity
		}
		out = append(out, Choice{Label: label, Value: p.Identity})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOpponents, division)
	}
	return out, nil
}

// SelectOpponent answers the second step and offers the score tokens.
func (e *Engine) SelectOpponent(ctx context.Context, id, actor, value string) (Prompt, error) {
	return e.advance(ctx, id, actor, StateSelectOpponent, func(s *Session) error {
		c, ok := s.offered(value)
		if !ok {
			return fmt.Errorf("%w: opponent %q", ErrNotOffered, value)
		}
		s.OpponentID, s.OpponentLabel = c.Value, c.Label
		tokens := rating.Tokens()
		s.Offered = make([]Choice, 0, len(tokens))
		for _, t := range tokens {
			s.Offered = append(s.Offered, Choice{Label: t, Value: t})
		}
		return moveTo(s, StateSelectScore)
	})
}

// SelectScore answers the third step. The token reads from the submitter's
// side: "2-1" means the submitter won two games to one.
func (e *Engine) SelectScore(ctx context.Context, id, actor, value string) (Prompt, error) {
	return e.advance(ctx, id, actor, StateSelectScore, func(s *Session) error {
		c, ok := s.offered(value)
		if !ok {
			return fmt.Errorf("%w: score %q", ErrNotOffered, value)
		}
		s.ScoreToken = c.Value
		s.Offered = nil
		return moveTo(s, StateEnterReplays)
	})
}

// EnterReplays records up to three replay links; blank entries are dropped.
func (e *Engine) EnterReplays(ctx context.Context, id, actor string, replays []string) (Prompt, error) {
	cleaned := make([]string, 0, len(replays))
	for _, r := range replays {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) > model.MaxReplays {
		metrics.RecordInvalidSelection(string(StateEnterReplays))
		return Prompt{}, fmt.Errorf("%w: got %d", ErrTooManyReplays, len(cleaned))
	}
	return e.advance(ctx, id, actor, StateEnterReplays, func(s *Session) error {
		s.Replays = cleaned
		return moveTo(s, StateConfirm)
	})
}

// Confirm either forwards the submission to the moderators or discards it.
func (e *Engine) Confirm(ctx context.Context, id, actor string, accept bool) (Prompt, error) {
	if !accept {
		if _, err := e.advance(ctx, id, actor, StateConfirm, func(s *Session) error {
			return moveTo(s, StateRejected)
		}); err != nil {
			return Prompt{}, err
		}
		e.finish(ctx, id, "withdrawn")
		return Prompt{SessionID: id, State: StateRejected, Kind: KindDone, Message: "Submission discarded."}, nil
	}

	p, err := e.advance(ctx, id, actor, StateConfirm, func(s *Session) error {
		s.ExpiresAt = e.now().Add(e.reviewTTL)
		return moveTo(s, StatePendingReview)
	})
	if err != nil {
		return Prompt{}, err
	}
	s, err := e.store.Get(ctx, id)
	if err != nil {
		return Prompt{}, err
	}
	if err := e.messenger.RequestReview(ctx, s, ReviewText(s)); err != nil {
		// Hand the step back so the submitter can confirm again.
		if _, rerr := e.store.Update(ctx, id, func(s *Session) error {
			s.ExpiresAt = e.now().Add(e.sessionTTL)
			s.State = StateConfirm
			return nil
		}); rerr != nil {
			e.logger.Warn(ctx, "revert confirmation", logger.String("session", id), logger.Error(rerr))
		}
		return Prompt{}, fmt.Errorf("request review: %w", err)
	}
	p.Kind = KindDone
	p.Message = "Your submission was sent to the moderators for review."
	return p, nil
}

// Review applies a moderator's decision. Approval commits the result and
// both rating updates in one transaction; a session is committed at most once.
func (e *Engine) Review(ctx context.Context, id, moderator string, accept bool) (Prompt, error) {
	next := StateCommitting
	if !accept {
		next = StateRejected
	}
	now := e.now()
	s, err := e.store.Update(ctx, id, func(s *Session) error {
		if s.Expired(now) {
			return ErrSessionExpired
		}
		if s.State != StatePendingReview {
			return fmt.Errorf("%w: %s", ErrWrongState, s.State)
		}
		if s.Submitter == moderator {
			return ErrSelfReview
		}
		s.Reviewer = moderator
		s.UpdatedAt = now
		return moveTo(s, next)
	})
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			e.expireByID(ctx, id)
		}
		return Prompt{}, err
	}
	metrics.RecordStepTransition(string(s.State))

	if !accept {
		e.finish(ctx, id, "rejected")
		e.notify(ctx, s, fmt.Sprintf("Your submission for %s was rejected by a moderator.", s.MatchLabel))
		return Prompt{SessionID: id, State: StateRejected, Kind: KindDone, Message: "Submission rejected."}, nil
	}
	return e.commit(ctx, s)
}

func (e *Engine) commit(ctx context.Context, s Session) (Prompt, error) {
	score, err := rating.ParseScore(s.ScoreToken)
	if err != nil {
		e.release(ctx, s.ID)
		return Prompt{}, fmt.Errorf("%w: %w", ErrNotRecorded, err)
	}
	rate := func(submitterRating, opponentRating int) (rating.Outcome, error) {
		return e.rater.Rate(submitterRating, opponentRating, score, s.Division)
	}

	start := time.Now()
	receipt, err := e.ledger.Commit(ctx, Commit{
		MatchID:   s.MatchID,
		Division:  s.Division,
		Submitter: s.Submitter,
		Opponent:  s.OpponentID,
		Reviewer:  s.Reviewer,
		Score:     score,
		Replays:   s.Replays,
	}, rate)
	switch {
	case errors.Is(err, ErrAlreadyPlayed):
		metrics.RecordCommitConflict()
		e.finish(ctx, s.ID, "conflict")
		e.notify(ctx, s, fmt.Sprintf("The result of %s was already recorded; your submission was discarded.", s.MatchLabel))
		return Prompt{}, err
	case err != nil:
		metrics.RecordCommitError()
		metrics.RecordErrorByComponent("workflow", "commit")
		e.release(ctx, s.ID)
		e.logger.Error(ctx, "commit failed",
			logger.String("session", s.ID),
			logger.String("match", s.MatchID),
			logger.Error(err))
		return Prompt{}, fmt.Errorf("%w: %w", ErrNotRecorded, err)
	}

	metrics.RecordCommit(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordRatingDelta(receipt.Submitter.Delta)
	e.finish(ctx, s.ID, "committed")
	for _, hook := range e.hooks {
		hook(ctx, receipt)
	}
	e.logger.Info(ctx, "match result committed",
		logger.String("match", s.MatchID),
		logger.String("submitter", s.Submitter),
		logger.String("opponent", s.OpponentID),
		logger.String("reviewer", s.Reviewer),
		logger.String("score", s.ScoreToken),
		logger.Int("delta", receipt.Submitter.Delta))
	e.notify(ctx, s, fmt.Sprintf("Your result for %s was recorded. Rating %d -> %d.",
		s.MatchLabel, receipt.Submitter.Before, receipt.Submitter.After))

	return Prompt{
		SessionID: s.ID,
		State:     StateCommitted,
		Kind:      KindDone,
		Message:   "Match result recorded.",
		Summary:   Summary(s),
	}, nil
}

// release hands a claimed session back to the review queue.
func (e *Engine) release(ctx context.Context, id string) {
	_, err := e.store.Update(ctx, id, func(s *Session) error {
		if s.State != StateCommitting {
			return fmt.Errorf("%w: %s", ErrWrongState, s.State)
		}
		s.Reviewer = ""
		return moveTo(s, StatePendingReview)
	})
	if err != nil {
		e.logger.Warn(ctx, "release session", logger.String("session", id), logger.Error(err))
	}
}

// Handle routes a submitter interaction to the step the session is in.
func (e *Engine) Handle(ctx context.Context, ev Event) (Prompt, error) {
	return e.once(ctx, ev, func() (Prompt, error) {
		s, err := e.store.Get(ctx, ev.SessionID)
		if err != nil {
			return Prompt{}, err
		}
		switch s.State {
		case StateSelectMatch:
			return e.SelectMatch(ctx, ev.SessionID, ev.Actor, ev.Value)
		case StateSelectOpponent:
			return e.SelectOpponent(ctx, ev.SessionID, ev.Actor, ev.Value)
		case StateSelectScore:
			return e.SelectScore(ctx, ev.SessionID, ev.Actor, ev.Value)
		case StateEnterReplays:
			return e.EnterReplays(ctx, ev.SessionID, ev.Actor, ev.Replays)
		case StateConfirm:
			return e.Confirm(ctx, ev.SessionID, ev.Actor, ev.Accept)
		default:
			return Prompt{}, fmt.Errorf("%w: %s", ErrWrongState, s.State)
		}
	})
}

// HandleReview is Review behind the interaction id guard.
func (e *Engine) HandleReview(ctx context.Context, ev Event) (Prompt, error) {
	return e.once(ctx, ev, func() (Prompt, error) {
		return e.Review(ctx, ev.SessionID, ev.Actor, ev.Accept)
	})
}

// once applies step at most once per interaction id. A failed step forgets
// the id so the client may retry it.
func (e *Engine) once(ctx context.Context, ev Event, step func() (Prompt, error)) (Prompt, error) {
	if ev.InteractionID == "" {
		return step()
	}
	if e.deduper.SeenAndRecord(ctx, ev.InteractionID) {
		metrics.RecordDuplicateInteraction()
		s, err := e.store.Get(ctx, ev.SessionID)
		if err != nil {
			return Prompt{SessionID: ev.SessionID, Kind: KindDone, Message: "This step was already handled.", Duplicate: true}, nil
		}
		p := render(s)
		p.Duplicate = true
		return p, nil
	}
	p, err := step()
	if err != nil {
		e.deduper.Unrecord(ctx, ev.InteractionID)
	}
	return p, err
}

// advance runs one submitter step under the store's per-session atomicity.
func (e *Engine) advance(ctx context.Context, id, actor string, want State, fn func(*Session) error) (Prompt, error) {
	now := e.now()
	s, err := e.store.Update(ctx, id, func(s *Session) error {
		if s.Expired(now) {
			return ErrSessionExpired
		}
		if s.Submitter != actor {
			return ErrNotSubmitter
		}
		if s.State != want {
			return fmt.Errorf("%w: %s", ErrWrongState, s.State)
		}
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = now
		return nil
	})
	switch {
	case errors.Is(err, ErrSessionExpired):
		e.expireByID(ctx, id)
		return Prompt{}, err
	case errors.Is(err, ErrNotOffered):
		metrics.RecordInvalidSelection(string(want))
		return Prompt{}, err
	case err != nil:
		return Prompt{}, err
	}
	metrics.RecordStepTransition(string(s.State))
	return render(s), nil
}

func moveTo(s *Session, next State) error {
	if !CanTransition(s.State, next) {
		return fmt.Errorf("%w: %s -> %s", ErrWrongState, s.State, next)
	}
	s.State = next
	return nil
}

func (e *Engine) finish(ctx context.Context, id, outcome string) {
	if err := e.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		e.logger.Warn(ctx, "delete session", logger.String("session", id), logger.Error(err))
	}
	metrics.RecordSessionFinished(outcome)
}

func (e *Engine) expireByID(ctx context.Context, id string) {
	s, err := e.store.Get(ctx, id)
	if err != nil {
		return
	}
	e.expire(ctx, s)
}

func (e *Engine) expire(ctx context.Context, s Session) {
	e.finish(ctx, s.ID, "expired")
	if s.State == StatePendingReview {
		e.notify(ctx, s, fmt.Sprintf("Your submission for %s expired before a moderator reviewed it.", s.MatchLabel))
	}
}

func (e *Engine) notify(ctx context.Context, s Session, text string) {
	if err := e.messenger.NotifySubmitter(ctx, s, text); err != nil {
		e.logger.Warn(ctx, "notify submitter",
			logger.String("session", s.ID),
			logger.String("submitter", s.Submitter),
			logger.Error(err))
	}
}
