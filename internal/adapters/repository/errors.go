package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyPlayed   = errors.New("match already played")
	ErrStaleRating     = errors.New("rating changed concurrently")
	ErrDuplicateMatch  = errors.New("duplicate match id")
	ErrSamePlayer      = errors.New("a player cannot play themselves")
	ErrInvalidPage     = errors.New("invalid page")
	ErrAlreadyExists   = errors.New("already exists")
	ErrEmptyAssignment = errors.New("no players to assign")
)
