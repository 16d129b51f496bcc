// Package seasonsim drives a simulated season against a running league
// server: fake players register, submit results, moderators review them and
// the resulting standings are checked for consistency.
package seasonsim

import "time"

// Config holds configuration for a simulated season.
type Config struct {
	BaseURL      string        // Base URL of the service
	Secret       string        // JWT secret shared with the service
	Division     string        // Division the players are assigned to
	Players      int           // Number of fake players to register
	Submissions  int           // Maximum number of submissions to attempt
	Workers      int           // Number of concurrent submitters
	ApproveRatio float64       // Share of submissions the moderator approves
	StartSeason  bool          // Ingest schedules before submitting
	Seed         int64         // Faker seed; 0 picks a random one
	Timeout      time.Duration // HTTP request timeout
	OutputFile   string        // Optional JSON report path
}

// Stats holds simulation statistics.
type Stats struct {
	PlayersRegistered int           `json:"players_registered"`
	MatchesIngested   int           `json:"matches_ingested"`
	Started           int           `json:"started"`
	Approved          int           `json:"approved"`
	Rejected          int           `json:"rejected"`
	Conflicts         int           `json:"conflicts"`
	Failed            int           `json:"failed"`
	Exhausted         bool          `json:"exhausted"`
	LeaderboardSize   int           `json:"leaderboard_size"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration"`
}

type choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type prompt struct {
	SessionID string   `json:"session_id"`
	State     string   `json:"state"`
	Kind      string   `json:"kind"`
	Message   string   `json:"message"`
	Choices   []choice `json:"choices"`
	Duplicate bool     `json:"duplicate"`
}

type entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Rating   int    `json:"rating"`
}

type card struct {
	PlayerID string `json:"player_id"`
	Rating   int    `json:"rating"`
	Division string `json:"division"`
}

type ratingChange struct {
	MatchID string `json:"match_id"`
	Delta   int    `json:"delta"`
}

type seasonReport struct {
	Divisions []struct {
		Division string `json:"division"`
		Matches  int    `json:"matches"`
	} `json:"divisions"`
	Errors []string `json:"errors"`
}

type pendingReview struct {
	SessionID string `json:"session_id"`
	Submitter string `json:"submitter"`
}
