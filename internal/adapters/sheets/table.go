package sheets

import (
	"context"
	"strconv"

	"github.com/okian/league/internal/domain/model"
)

// ExportTab is the worksheet the match table is written to.
const ExportTab = "Matches"

// Header is the first row of the exported match table.
var Header = []string{"WEEK", "TEAM1", "TEAM2", "SCORE1", "SCORE2", "PLAYED", "REPLAY1", "REPLAY2", "REPLAY3", "DIVISION"}

// Table is a header row followed by data rows.
type Table [][]string

// Publisher writes a table to the destination named by key.
type Publisher interface {
	Publish(ctx context.Context, key string, t Table) error
}

// MatchTable flattens matches into the export layout. Unset scores and
// replays are empty cells; PLAYED is 1 or 0.
func MatchTable(matches []model.Match) Table {
	t := make(Table, 0, len(matches)+1)
	t = append(t, append([]string(nil), Header...))
	for _, m := range matches {
		row := make([]string, len(Header))
		row[0] = strconv.Itoa(m.Week)
		row[1] = m.Team1
		row[2] = m.Team2
		if m.Score1 != nil {
			row[3] = strconv.Itoa(*m.Score1)
		}
		if m.Score2 != nil {
			row[4] = strconv.Itoa(*m.Score2)
		}
		row[5] = "0"
		if m.Played {
			row[5] = "1"
		}
		for i := 0; i < len(m.Replays) && i < model.MaxReplays; i++ {
			row[6+i] = m.Replays[i]
		}
		row[9] = m.Division
		t = append(t, row)
	}
	return t
}
