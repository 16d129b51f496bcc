package workflow

import (
	"context"
	"time"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/rating"
)

// Store keeps sessions. Each call is atomic with respect to one session.
type Store interface {
	Create(ctx context.Context, s Session) error
	// Get returns ErrSessionNotFound for unknown ids.
	Get(ctx context.Context, id string) (Session, error)
	// Update runs fn on the stored session and persists the result only if
	// fn returns nil. Concurrent updates of one session are serialized.
	Update(ctx context.Context, id string, fn func(*Session) error) (Session, error)
	Delete(ctx context.Context, id string) error
	// List returns sessions in state, oldest first.
	List(ctx context.Context, state State) ([]Session, error)
	// DeleteExpired removes sessions past their deadline and returns them.
	DeleteExpired(ctx context.Context, now time.Time) ([]Session, error)
	Count(ctx context.Context) (int, error)
}

// RateFunc computes the rating update from the pre-update ratings of the
// submitter and the opponent, read inside the commit transaction.
type RateFunc func(submitterRating, opponentRating int) (rating.Outcome, error)

// Commit is everything the ledger needs to record a reviewed result.
type Commit struct {
	MatchID   string
	Division  string
	Submitter string
	Opponent  string
	Reviewer  string
	Score     rating.Score
	Replays   []string
}

// Receipt describes a committed result.
type Receipt struct {
	Match     model.Match
	Submitter model.RatingChange
	Opponent  model.RatingChange
}

// Ledger is the persistent side of the league seen by the workflow.
type Ledger interface {
	// OpenMatches returns the unplayed matches of division in schedule order.
	OpenMatches(ctx context.Context, division string) ([]model.Match, error)
	// Roster returns the players assigned to division.
	Roster(ctx context.Context, division string) ([]model.Player, error)
	// Player returns a registered player.
	Player(ctx context.Context, identity string) (model.Player, error)
	// Commit writes the match result and both rating updates in one
	// transaction. It fails with ErrAlreadyPlayed if the match was played.
	Commit(ctx context.Context, c Commit, rate RateFunc) (Receipt, error)
}

// Messenger delivers workflow notices to people.
type Messenger interface {
	// RequestReview forwards a confirmed submission to the moderators.
	RequestReview(ctx context.Context, s Session, text string) error
	// NotifySubmitter tells the submitter how their submission ended.
	NotifySubmitter(ctx context.Context, s Session, text string) error
}
