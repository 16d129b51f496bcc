// Package model contains domain models passed between layers.
package model

import "time"

// DefaultRating is the rating every player starts with.
const DefaultRating = 1200

// Player is a registered league participant.
type Player struct {
	Identity    string // opaque external id, unique
	DisplayName string
	Rating      int
	Division    string // empty until assigned
	Version     int    // bumped on every rating write
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RatingChange records one side of a committed rating update.
type RatingChange struct {
	MatchID  string
	Identity string
	Before   int
	After    int
	Delta    int
	At       time.Time
}
