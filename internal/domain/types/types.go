// Package types contains read shapes shared by the service and the HTTP layer.
package types

// Entry is one leaderboard row.
type Entry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
	Rating      int    `json:"rating"`
	Division    string `json:"division,omitempty"`
}

// PlayerCard is the self-service view of a player.
type PlayerCard struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
	Rating      int    `json:"rating"`
	Division    string `json:"division,omitempty"`
	Rank        int    `json:"rank,omitempty"`
}

// Page is one page of the all-players listing.
type Page struct {
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
	Total      int     `json:"total"`
	Players    []Entry `json:"players"`
}

// PendingReview is a confirmed submission waiting for a moderator.
type PendingReview struct {
	SessionID string `json:"session_id"`
	Division  string `json:"division"`
	Submitter string `json:"submitter"`
	Text      string `json:"text"`
}

// SeasonReport summarizes one division's ingestion.
type SeasonReport struct {
	Division string `json:"division"`
	Matches  int    `json:"matches"`
	Weeks    int    `json:"weeks"`
	Teams    int    `json:"teams"`
}
