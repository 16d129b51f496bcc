package repository

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/league/internal/domain/model"
)

type playerRow struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	Identity    string    `bun:"identity,pk"`
	DisplayName string    `bun:"display_name,notnull"`
	Rating      int       `bun:"rating,notnull"`
	Division    string    `bun:"division,nullzero"`
	Version     int       `bun:"version,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r playerRow) toModel() model.Player {
	return model.Player{
		Identity:    r.Identity,
		DisplayName: r.DisplayName,
		Rating:      r.Rating,
		Division:    r.Division,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type matchRow struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	ID          string     `bun:"id,pk"`
	Division    string     `bun:"division,notnull"`
	Week        int        `bun:"week,notnull"`
	Position    int        `bun:"position,notnull"`
	Team1       string     `bun:"team1,notnull"`
	Team2       string     `bun:"team2,notnull"`
	Played      bool       `bun:"played,notnull"`
	Score1      *int       `bun:"score1"`
	Score2      *int       `bun:"score2"`
	Replay1     string     `bun:"replay1,nullzero"`
	Replay2     string     `bun:"replay2,nullzero"`
	Replay3     string     `bun:"replay3,nullzero"`
	SubmittedBy string     `bun:"submitted_by,nullzero"`
	ApprovedBy  string     `bun:"approved_by,nullzero"`
	PlayedAt    *time.Time `bun:"played_at"`
}

func (r matchRow) toModel() model.Match {
	m := model.Match{
		ID:          r.ID,
		Week:        r.Week,
		Team1:       r.Team1,
		Team2:       r.Team2,
		Division:    r.Division,
		Played:      r.Played,
		Score1:      r.Score1,
		Score2:      r.Score2,
		SubmittedBy: r.SubmittedBy,
		ApprovedBy:  r.ApprovedBy,
		PlayedAt:    r.PlayedAt,
	}
	for _, ref := range []string{r.Replay1, r.Replay2, r.Replay3} {
		if ref != "" {
			m.Replays = append(m.Replays, ref)
		}
	}
	return m
}

type ratingChangeRow struct {
	bun.BaseModel `bun:"table:rating_changes,alias:rc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	MatchID   string    `bun:"match_id,notnull"`
	Identity  string    `bun:"identity,notnull"`
	Before    int       `bun:"rating_before,notnull"`
	After     int       `bun:"rating_after,notnull"`
	Delta     int       `bun:"delta,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r ratingChangeRow) toModel() model.RatingChange {
	return model.RatingChange{
		MatchID:  r.MatchID,
		Identity: r.Identity,
		Before:   r.Before,
		After:    r.After,
		Delta:    r.Delta,
		At:       r.CreatedAt,
	}
}
