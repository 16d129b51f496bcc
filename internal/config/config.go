// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and LEAGUE_ env vars.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Division describes one league tier: its display name, the schedule sheet it
// is ingested from and the k-factor applied to its rating updates.
type Division struct {
	Name     string `koanf:"name"`
	SheetKey string `koanf:"sheet_key"`
	KFactor  int    `koanf:"k_factor"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file holding players and matches.
	DatabasePath string `koanf:"database_path"`

	// SessionStore is "memory" or "bolt"; SessionStorePath is used by bolt.
	SessionStore     string `koanf:"session_store"`
	SessionStorePath string `koanf:"session_store_path"`

	// SessionTTL bounds how long a submitter may take to finish the flow.
	SessionTTL time.Duration `koanf:"session_ttl"`
	// ReviewTTL bounds how long a submission waits for a moderator.
	ReviewTTL time.Duration `koanf:"review_ttl"`
	// JanitorInterval is how often expired sessions are swept.
	JanitorInterval time.Duration `koanf:"janitor_interval"`

	// Divisions lists the known tiers.
	Divisions []Division `koanf:"divisions"`
	// DefaultKFactor applies to divisions without an explicit k-factor.
	DefaultKFactor int `koanf:"default_k_factor"`

	// ScheduleSource is "file" (csv/xlsx files under ScheduleDir) or "sheets".
	ScheduleSource string `koanf:"schedule_source"`
	ScheduleDir    string `koanf:"schedule_dir"`
	// SheetsBaseURL and SheetsCredentials configure the hosted spreadsheet API.
	SheetsBaseURL     string `koanf:"sheets_base_url"`
	SheetsCredentials string `koanf:"sheets_credentials"`
	// ExportSheetKey names the destination of the flat match table.
	ExportSheetKey string `koanf:"export_sheet_key"`

	// LeaderboardInterval is the period of the leaderboard post.
	LeaderboardInterval time.Duration `koanf:"leaderboard_interval"`
	// LeaderboardSize is the number of players in the post.
	LeaderboardSize int `koanf:"leaderboard_size"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
	// PageSize is the all-players page size.
	PageSize int `koanf:"page_size"`

	// ExportQueueSize bounds the in-memory export queue.
	ExportQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of export workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets the size of the interaction dedupe cache.
	DedupeSize int `koanf:"dedupe_size"`

	// JWTSecret signs and verifies access tokens.
	JWTSecret string `koanf:"jwt_secret"`
	// RateLimit is the per-identity request rate; RateBurst its burst.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// MetricsNamespace, MetricsSubsystem and MetricsLabels name and label
	// every exported Prometheus series.
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`

	// ModerationWebhook and AnnouncementWebhook receive outbound posts. Empty
	// means the post is only logged.
	ModerationWebhook   string `koanf:"moderation_webhook"`
	AnnouncementWebhook string `koanf:"announcement_webhook"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		DatabasePath:     "league.db",
		SessionStore:     "memory",
		SessionStorePath: "sessions.db",
		SessionTTL:       15 * time.Minute,
		ReviewTTL:        72 * time.Hour,
		JanitorInterval:  time.Minute,
		Divisions: []Division{
			{Name: "Ultra", SheetKey: "ultra", KFactor: 16},
			{Name: "Poke", SheetKey: "poke", KFactor: 32},
			{Name: "Premier", SheetKey: "premier", KFactor: 24},
			{Name: "Test", SheetKey: "test", KFactor: 24},
		},
		DefaultKFactor:      24,
		ScheduleSource:      "file",
		ScheduleDir:         "schedules",
		SheetsBaseURL:       "https://sheets.googleapis.com/",
		ExportSheetKey:      "matches.xlsx",
		LeaderboardInterval: 24 * time.Hour,
		LeaderboardSize:     20,
		MaxLeaderboardLimit: 100,
		PageSize:            20,
		ExportQueueSize:     64,
		WorkerCount:         1,
		DedupeSize:          50_000,
		RateLimit:           5,
		RateBurst:           10,
		MetricsNamespace:    "league",
		MetricsSubsystem:    "core",
	}
}

// Division returns the division with the given name, case-insensitively.
func (c *Config) Division(name string) (Division, bool) {
	for _, d := range c.Divisions {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return d, true
		}
	}
	return Division{}, false
}

// KFactors maps division names to their k-factor, falling back to the default.
func (c *Config) KFactors() map[string]int {
	out := make(map[string]int, len(c.Divisions))
	for _, d := range c.Divisions {
		k := d.KFactor
		if k <= 0 {
			k = c.DefaultKFactor
		}
		out[d.Name] = k
	}
	return out
}

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.SessionStore != "memory" && c.SessionStore != "bolt":
		return fmt.Errorf("%w: session_store must be memory or bolt", ErrInvalidConfig)
	case c.ScheduleSource != "file" && c.ScheduleSource != "sheets":
		return fmt.Errorf("%w: schedule_source must be file or sheets", ErrInvalidConfig)
	case len(c.Divisions) == 0:
		return fmt.Errorf("%w: at least one division is required", ErrInvalidConfig)
	case c.DefaultKFactor <= 0:
		return fmt.Errorf("%w: default_k_factor must be positive", ErrInvalidConfig)
	case c.SessionTTL <= 0 || c.ReviewTTL <= 0:
		return fmt.Errorf("%w: session_ttl and review_ttl must be positive", ErrInvalidConfig)
	case c.PageSize <= 0 || c.LeaderboardSize <= 0:
		return fmt.Errorf("%w: page_size and leaderboard_size must be positive", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Divisions))
	for _, d := range c.Divisions {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if key == "" {
			return fmt.Errorf("%w: division name must not be empty", ErrInvalidConfig)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate division %q", ErrInvalidConfig, d.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}
