package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/league/internal/domain/types"
	"github.com/okian/league/pkg/logger"
)

// Leaderboard renders the top players as an announcement.
func (s *Service) Leaderboard(ctx context.Context) (string, error) {
	top, err := s.TopN(ctx, s.leaderboardSize)
	if err != nil {
		return "", err
	}
	return RenderLeaderboard(top, s.leaderboardSize, s.leaderboardInterval), nil
}

// RenderLeaderboard formats entries with a marker per position.
func RenderLeaderboard(entries []types.Entry, size int, every time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d Players 🏆\n", size)
	if len(entries) == 0 {
		b.WriteString("No ranked players yet.\n")
	}
	for i, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = e.PlayerID
		}
		fmt.Fprintf(&b, "%s %d. %s - %d\n", marker(i), i+1, name, e.Rating)
	}
	if every > 0 {
		fmt.Fprintf(&b, "Updated every %s", humanize(every))
	}
	return strings.TrimRight(b.String(), "\n")
}

func marker(i int) string {
	switch i {
	case 0:
		return "🌟"
	case 1:
		return "⭐"
	case 2:
		return "✨"
	default:
		return "🔹"
	}
}

func humanize(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}

// PublishLeaderboard announces the current leaderboard.
func (s *Service) PublishLeaderboard(ctx context.Context) error {
	text, err := s.Leaderboard(ctx)
	if err != nil {
		return err
	}
	return s.notifier.Announce(ctx, text)
}

func (s *Service) runLeaderboard(ctx context.Context) {
	ticker := time.NewTicker(s.leaderboardInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PublishLeaderboard(ctx); err != nil {
				s.logger.Error(ctx, "leaderboard post failed", logger.Error(err))
			}
		}
	}
}
