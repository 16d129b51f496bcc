package seasonsim

import (
	"github.com/brianvoe/gofakeit/v7"
)

const maxReplays = 3

type player struct {
	Identity string
	Name     string
	Token    string
}

// plan fixes every random choice of one submission up front so workers never
// share the faker.
type plan struct {
	Submitter int
	Match     int
	Opponent  int
	Score     int
	Replays   []string
	Approve   bool
}

// generatePlayers creates n players with unique identities.
func generatePlayers(f *gofakeit.Faker, n int) []player {
	seen := make(map[string]struct{}, n)
	out := make([]player, 0, n)
	for len(out) < n {
		id := f.UUID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, player{Identity: id, Name: f.Name()})
	}
	return out
}

// generatePlans draws n submissions over players.
func generatePlans(f *gofakeit.Faker, n, players int, approveRatio float64) []plan {
	out := make([]plan, n)
	for i := range out {
		p := plan{
			Submitter: f.Number(0, players-1),
			Match:     f.Number(0, 1<<20),
			Opponent:  f.Number(0, 1<<20),
			Score:     f.Number(0, 1<<20),
			Approve:   f.Float64Range(0, 1) < approveRatio,
		}
		for r := f.Number(0, maxReplays); r > 0; r-- {
			p.Replays = append(p.Replays, f.URL())
		}
		out[i] = p
	}
	return out
}

// pick returns the n-th offered value, wrapping around.
func pick(choices []choice, n int) (string, bool) {
	if len(choices) == 0 {
		return "", false
	}
	return choices[n%len(choices)].Value, true
}
