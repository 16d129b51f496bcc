package rating

import (
	"fmt"
	"strings"
)

// Score is a reported series result expressed as signed values per side.
type Score struct {
	Token string
	Team1 int
	Team2 int
}

var scoreTable = map[string]Score{
	"2-1": {Token: "2-1", Team1: 1, Team2: -1},
	"2-0": {Token: "2-0", Team1: 2, Team2: -2},
	"1-2": {Token: "1-2", Team1: -1, Team2: 1},
	"0-2": {Token: "0-2", Team1: -2, Team2: 2},
}

// Tokens lists the accepted score tokens in the order they are offered.
func Tokens() []string {
	return []string{"2-1", "2-0", "0-2", "1-2"}
}

// ParseScore maps one of the four accepted tokens to its score pair.
func ParseScore(token string) (Score, error) {
	s, ok := scoreTable[strings.TrimSpace(token)]
	if !ok {
		return Score{}, fmt.Errorf("%w: %q", ErrInvalidScore, token)
	}
	return s, nil
}

// ResultTeam1 is 1 when team1 won the series and 0 otherwise.
func (s Score) ResultTeam1() float64 {
	if s.Team1 > s.Team2 {
		return 1
	}
	return 0
}
