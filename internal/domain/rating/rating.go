// Package rating implements the pairwise Elo update used after every
// committed match, plus the parser for the reported score tokens.
package rating

import (
	"fmt"
	"math"
	"strings"
)

const (
	defaultK = 24
	// eloScale is the rating difference at which the favourite is expected
	// to win ten times as often.
	eloScale = 400
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithKFactors sets the per-division k-factors. Non-positive values are ignored.
func WithKFactors(k map[string]int) Option {
	return func(e *Engine) {
		e.byDivision = make(map[string]int, len(k))
		for name, v := range k {
			if v > 0 {
				e.byDivision[strings.ToLower(name)] = v
			}
		}
	}
}

// WithDefaultK sets the k-factor for divisions missing from the table.
func WithDefaultK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.defaultK = k
		}
	}
}

// Engine computes rating updates with a tier-dependent k-factor.
type Engine struct {
	byDivision map[string]int
	defaultK   int
}

// NewEngine returns an Engine with the built-in tier table: the volatile
// Poke tier moves fastest, the settled Ultra tier slowest.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		byDivision: map[string]int{"poke": 32, "ultra": 16},
		defaultK:   defaultK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// K returns the k-factor for division.
func (e *Engine) K(division string) int {
	if k, ok := e.byDivision[strings.ToLower(division)]; ok {
		return k
	}
	return e.defaultK
}

// Expected is the probability that a player rated ratingA beats one rated ratingB.
func Expected(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/eloScale))
}

// Outcome is the result of one pairwise update.
type Outcome struct {
	NewA, NewB     int
	DeltaA, DeltaB int
}

// Update computes both new ratings from the same pre-update pair. resultA is
// 1 for a win of A, 0 for a loss. The delta is rounded half away from zero
// and mirrored for B, so an update never creates or destroys rating.
func Update(ratingA, ratingB int, resultA float64, k int) (Outcome, error) {
	if resultA < 0 || resultA > 1 || math.IsNaN(resultA) {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidResult, resultA)
	}
	if k <= 0 {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	delta := int(math.Round(float64(k) * (resultA - Expected(ratingA, ratingB))))
	return Outcome{
		NewA:   ratingA + delta,
		NewB:   ratingB - delta,
		DeltaA: delta,
		DeltaB: -delta,
	}, nil
}

// Rate applies a parsed score between team1 (rating a) and team2 (rating b)
// of division. The margin only affects the stored score, not the rating.
func (e *Engine) Rate(a, b int, s Score, division string) (Outcome, error) {
	return Update(a, b, s.ResultTeam1(), e.K(division))
}
