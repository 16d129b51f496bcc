package standings

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("player not ranked")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
