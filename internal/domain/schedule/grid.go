// Package schedule rebuilds a division's week-numbered fixture list from the
// interleaved schedule grid: odd weeks occupy the left seven columns of every
// data row and even weeks the columns after them.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/league/internal/domain/model"
)

const (
	halfWidth  = 7 // columns per week half
	team1Col   = 2 // offsets within a half
	team2Col   = 5
	weekMarker = "Week"
	minTeams   = 2
)

// Grid is a rectangular table of text cells as read from the schedule sheet.
type Grid [][]string

// normalize trims every cell and pads rows to the widest row.
func normalize(g Grid) Grid {
	width := 0
	for _, row := range g {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make(Grid, len(g))
	for i, row := range g {
		r := make([]string, width)
		for j, cell := range row {
			r[j] = strings.TrimSpace(cell)
		}
		out[i] = r
	}
	return out
}

func isWeekMarker(cell string) bool { return strings.HasPrefix(cell, weekMarker) }

func isDigits(cell string) bool {
	if cell == "" {
		return false
	}
	for _, r := range cell {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// UniqueTeams returns every team name on the grid, sorted. Empty cells, the
// score cells "0", "1" and "2" and week markers are not team names.
func UniqueTeams(g Grid) []string {
	seen := make(map[string]struct{})
	for _, row := range g {
		for _, cell := range row {
			name := strings.TrimSpace(cell)
			switch name {
			case "", "0", "1", "2":
				continue
			}
			if isWeekMarker(name) {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CountMatches counts adjacent pairs of team cells row by row.
func CountMatches(g Grid) int {
	total := 0
	for _, row := range g {
		n := 0
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" || isWeekMarker(cell) || isDigits(cell) {
				continue
			}
			n++
		}
		total += n / 2
	}
	return total
}

// Build reconstructs the ordered, unplayed fixtures of division. Any
// structural problem fails the whole grid with ErrMalformedGrid.
func Build(g Grid, division string) ([]model.Match, error) {
	grid := normalize(g)
	if len(grid) == 0 || len(grid[0]) < halfWidth {
		return nil, fmt.Errorf("%w: grid narrower than %d columns", ErrMalformedGrid, halfWidth)
	}

	teams := UniqueTeams(grid)
	if len(teams) < minTeams {
		return nil, fmt.Errorf("%w: %d teams found", ErrMalformedGrid, len(teams))
	}
	perWeek := len(teams) / 2

	total := CountMatches(grid)
	if total == 0 {
		return nil, fmt.Errorf("%w: no fixtures", ErrMalformedGrid)
	}
	if total%perWeek != 0 {
		return nil, fmt.Errorf("%w: %d fixtures do not fill weeks of %d", ErrMalformedGrid, total, perWeek)
	}

	var odd, even [][]string
	for _, row := range grid {
		if row[team1Col] == "" || isWeekMarker(row[team1Col]) {
			continue
		}
		odd = append(odd, row[:halfWidth])
		even = append(even, row[halfWidth:])
	}

	matches := make([]model.Match, 0, total)
	ids := make(map[string]struct{}, total)
	week, oi, ei := 1, 0, 0
	for i := 1; i <= total; i++ {
		var half []string
		if week%2 == 0 {
			if ei >= len(even) {
				return nil, fmt.Errorf("%w: ran out of even-week rows at week %d", ErrMalformedGrid, week)
			}
			half = even[ei]
			ei++
		} else {
			if oi >= len(odd) {
				return nil, fmt.Errorf("%w: ran out of odd-week rows at week %d", ErrMalformedGrid, week)
			}
			half = odd[oi]
			oi++
		}
		if len(half) <= team2Col || half[team1Col] == "" || half[team2Col] == "" {
			return nil, fmt.Errorf("%w: missing team cell in week %d", ErrMalformedGrid, week)
		}

		m := model.Match{
			ID:       model.MatchID(division, half[team1Col], half[team2Col]),
			Week:     week,
			Team1:    half[team1Col],
			Team2:    half[team2Col],
			Division: division,
		}
		if _, dup := ids[m.ID]; dup {
			return nil, fmt.Errorf("%w: %w: %s", ErrMalformedGrid, ErrDuplicateFixture, m.ID)
		}
		ids[m.ID] = struct{}{}
		matches = append(matches, m)

		if i%perWeek == 0 {
			week++
		}
	}
	return matches, nil
}
