package model

import (
	"fmt"
	"strings"
	"time"
)

// MaxReplays is the number of replay references a result may carry.
const MaxReplays = 3

// Match is one scheduled fixture. A match is either unplayed with no score,
// or played with both scores set; a played match never changes again.
type Match struct {
	ID       string
	Week     int
	Team1    string
	Team2    string
	Division string
	Played   bool
	Score1   *int
	Score2   *int
	Replays  []string

	SubmittedBy string
	ApprovedBy  string
	PlayedAt    *time.Time
}

// MatchID derives the deterministic fixture id. The separator keeps
// ("AB","C") and ("A","BC") apart.
func MatchID(division, team1, team2 string) string {
	return division + "|" + team1 + "|" + team2
}

// Label renders the short form shown to submitters, e.g. "W3 RD Vs. BT".
func (m Match) Label() string {
	return fmt.Sprintf("W%d %s Vs. %s", m.Week, Initials(m.Team1), Initials(m.Team2))
}

// Initials upper-cases the first rune of every whitespace separated word.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}

// Result is the outcome of a match as it is written on commit.
type Result struct {
	MatchID     string
	Score1      int
	Score2      int
	Replays     []string
	SubmittedBy string
	ApprovedBy  string
}
