package schedule

import "strconv"

const bye = "\x00bye"

// RoundRobin lays out a circle-method round robin of teams over weeks in the
// interleaved grid format. Odd team counts sit one team out per week. Past
// len(teams)-1 weeks pairings repeat, which Build rejects as duplicates.
func RoundRobin(teams []string, weeks int) Grid {
	ring := append([]string(nil), teams...)
	if len(ring)%2 == 1 {
		ring = append(ring, bye)
	}
	n := len(ring)
	if n < minTeams || weeks < 1 {
		return nil
	}

	rounds := make([][][2]string, weeks)
	for w := 0; w < weeks; w++ {
		for i := 0; i < n/2; i++ {
			a, b := ring[i], ring[n-1-i]
			if a == bye || b == bye {
				continue
			}
			rounds[w] = append(rounds[w], [2]string{a, b})
		}
		// rotate everything but the first seat
		last := ring[n-1]
		copy(ring[2:], ring[1:n-1])
		ring[1] = last
	}

	var g Grid
	for w := 0; w < weeks; w += 2 {
		header := make([]string, 2*halfWidth)
		header[team1Col] = "Week " + strconv.Itoa(w+1)
		if w+1 < weeks {
			header[halfWidth+team1Col] = "Week " + strconv.Itoa(w+2)
		}
		g = append(g, header)
		for i, pair := range rounds[w] {
			row := make([]string, 2*halfWidth)
			row[team1Col], row[3], row[4], row[team2Col] = pair[0], "0", "0", pair[1]
			if w+1 < weeks && i < len(rounds[w+1]) {
				next := rounds[w+1][i]
				row[halfWidth+team1Col], row[halfWidth+3], row[halfWidth+4], row[halfWidth+team2Col] = next[0], "0", "0", next[1]
			}
			g = append(g, row)
		}
	}
	return g
}
