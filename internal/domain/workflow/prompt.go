package workflow

import (
	"fmt"
	"strings"

	"github.com/okian/league/internal/domain/model"
)

// Kind tells a client how to render a Prompt.
type Kind string

const (
	KindSelect  Kind = "select"
	KindText    Kind = "text"
	KindConfirm Kind = "confirm"
	KindReview  Kind = "review"
	KindDone    Kind = "done"
)

// Prompt is what the submitter (or moderator) sees after a step.
type Prompt struct {
	SessionID string   `json:"session_id"`
	State     State    `json:"state"`
	Kind      Kind     `json:"kind"`
	Message   string   `json:"message"`
	Choices   []Choice `json:"choices,omitempty"`
	Fields    int      `json:"fields,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Duplicate bool     `json:"duplicate,omitempty"`
}

func render(s Session) Prompt {
	p := Prompt{SessionID: s.ID, State: s.State}
	switch s.State {
	case StateSelectMatch:
		p.Kind, p.Message, p.Choices = KindSelect, "Select your match:", s.Offered
	case StateSelectOpponent:
		p.Kind, p.Message, p.Choices = KindSelect, "Select your opponent:", s.Offered
	case StateSelectScore:
		p.Kind, p.Message, p.Choices = KindSelect, "Select the score:", s.Offered
	case StateEnterReplays:
		p.Kind, p.Fields = KindText, model.MaxReplays
		p.Message = fmt.Sprintf("Enter up to %d replay links (optional):", model.MaxReplays)
	case StateConfirm:
		p.Kind, p.Message, p.Summary = KindConfirm, "Please confirm your submission:", Summary(s)
	case StatePendingReview:
		p.Kind, p.Message, p.Summary = KindReview, "Waiting for a moderator to review the submission.", Summary(s)
	case StateCommitting:
		p.Kind, p.Message, p.Summary = KindDone, "The result is being recorded.", Summary(s)
	default:
		p.Kind = KindDone
	}
	return p
}

// Summary renders the collected answers, one per line.
func Summary(s Session) string {
	replays := "none"
	if len(s.Replays) > 0 {
		replays = strings.Join(s.Replays, ", ")
	}
	return strings.Join([]string{
		"Match: " + s.MatchLabel,
		"Opponent: " + s.OpponentLabel,
		"Score: " + s.ScoreToken,
		"Replays: " + replays,
	}, "\n")
}

// ReviewText is the moderator-facing notice for a confirmed submission.
func ReviewText(s Session) string {
	return fmt.Sprintf("New match submission for %s division by %s\n%s", s.Division, s.Submitter, Summary(s))
}
