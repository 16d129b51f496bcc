package workflow

import "errors"

// Sentinel kinds for workflow errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrWrongState      = errors.New("step not allowed in current state")
	ErrNotOffered      = errors.New("selection was not offered")
	ErrNotSubmitter    = errors.New("only the submitter may answer this step")
	ErrSelfReview      = errors.New("submitter cannot review their own submission")
	ErrNoOpenMatches   = errors.New("no unplayed matches in this division")
	ErrNoOpponents     = errors.New("no opponents in this division")
	ErrNotRegistered   = errors.New("player is not registered")
	ErrTooManyReplays  = errors.New("at most three replays")
	ErrAlreadyPlayed   = errors.New("match already played")
	ErrNotRecorded     = errors.New("result not recorded")
)
