// Package workflow drives a match report from the submitter's first
// selection to the moderator's decision. Every step is an explicit state
// transition on a stored Session; nothing is carried in closures.
package workflow

import (
	"slices"
	"time"
)

// State is a step of the submission flow.
type State string

const (
	StateSelectMatch    State = "select_match"
	StateSelectOpponent State = "select_opponent"
	StateSelectScore    State = "select_score"
	StateEnterReplays   State = "enter_replays"
	StateConfirm        State = "confirm"
	StatePendingReview  State = "pending_review"
	StateCommitting     State = "committing"
	StateCommitted      State = "committed"
	StateRejected       State = "rejected"
)

var transitions = map[State][]State{
	StateSelectMatch:    {StateSelectOpponent},
	StateSelectOpponent: {StateSelectScore},
	StateSelectScore:    {StateEnterReplays},
	StateEnterReplays:   {StateConfirm},
	StateConfirm:        {StatePendingReview, StateRejected},
	StatePendingReview:  {StateCommitting, StateRejected, StateConfirm},
	StateCommitting:     {StateCommitted, StatePendingReview, StateRejected},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Terminal reports whether no step leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Choice is one selectable option. Value is what the client sends back.
type Choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Session is the stored state of one submission.
type Session struct {
	ID        string    `json:"id"`
	Division  string    `json:"division"`
	Submitter string    `json:"submitter"`
	State     State     `json:"state"`
	Offered   []Choice  `json:"offered,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`

	MatchID       string   `json:"match_id,omitempty"`
	MatchLabel    string   `json:"match_label,omitempty"`
	OpponentID    string   `json:"opponent_id,omitempty"`
	OpponentLabel string   `json:"opponent_label,omitempty"`
	ScoreToken    string   `json:"score_token,omitempty"`
	Replays       []string `json:"replays,omitempty"`
	Reviewer      string   `json:"reviewer,omitempty"`
}

// offered returns the choice with the given value if it was offered.
func (s *Session) offered(value string) (Choice, bool) {
	for _, c := range s.Offered {
		if c.Value == value {
			return c, true
		}
	}
	return Choice{}, false
}

// Expired reports whether s is past its deadline at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
