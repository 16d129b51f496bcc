package seasonsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/league/pkg/logger"
)

const (
	initialRating = 1200
	historyLimit  = 1000
)

// ErrInconsistent reports standings that contradict the rating history.
var ErrInconsistent = errors.New("inconsistent standings")

// verify checks that the leaderboard is ordered with dense ranks, that every
// player's rating equals the start rating plus their history, and that the
// simulated players' ratings sum to zero net change. All of them play in
// one division, so every update is zero-sum.
func (r *runner) verify(ctx context.Context) error {
	var board []entry
	path := "/leaderboard?limit=" + strconv.Itoa(len(r.players)+2)
	if err := r.client.do(ctx, http.MethodGet, path, "", nil, &board); err != nil {
		return fmt.Errorf("fetch leaderboard: %w", err)
	}
	r.stats.LeaderboardSize = len(board)
	if err := checkOrder(board); err != nil {
		return err
	}

	drift := 0
	for _, p := range r.players {
		var c card
		if err := r.client.do(ctx, http.MethodGet, "/players/me", p.Token, nil, &c); err != nil {
			return fmt.Errorf("player card %s: %w", p.Identity, err)
		}
		var history []ratingChange
		hp := "/players/me/history?limit=" + strconv.Itoa(historyLimit)
		if err := r.client.do(ctx, http.MethodGet, hp, p.Token, nil, &history); err != nil {
			return fmt.Errorf("history %s: %w", p.Identity, err)
		}
		sum := 0
		for _, h := range history {
			sum += h.Delta
		}
		if c.Rating != initialRating+sum {
			return fmt.Errorf("%w: %s has rating %d but history sums to %+d", ErrInconsistent, p.Identity, c.Rating, sum)
		}
		drift += sum
	}
	if drift != 0 {
		return fmt.Errorf("%w: ratings drifted by %+d", ErrInconsistent, drift)
	}
	r.log.Info(ctx, "standings verified", logger.Int("leaderboard", len(board)))
	return nil
}

// checkOrder requires ratings to descend and ranks to be dense.
func checkOrder(board []entry) error {
	for i := 1; i < len(board); i++ {
		prev, cur := board[i-1], board[i]
		if cur.Rating > prev.Rating {
			return fmt.Errorf("%w: %s (%d) ranked below %s (%d)", ErrInconsistent, cur.PlayerID, cur.Rating, prev.PlayerID, prev.Rating)
		}
		want := prev.Rank
		if cur.Rating < prev.Rating {
			want++
		}
		if cur.Rank != want {
			return fmt.Errorf("%w: %s has rank %d, want %d", ErrInconsistent, cur.PlayerID, cur.Rank, want)
		}
	}
	if len(board) > 0 && board[0].Rank != 1 {
		return fmt.Errorf("%w: leaderboard starts at rank %d", ErrInconsistent, board[0].Rank)
	}
	return nil
}
