package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/league/internal/adapters/http/api"
	"github.com/okian/league/internal/adapters/repository"
	service "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/config"
	"github.com/okian/league/internal/seasonsim"
	"github.com/okian/league/pkg/logger"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		os.Stderr.WriteString("leaguectl: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "leaguectl",
		Usage:  "league administration",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", EnvVars: []string{config.EnvPrefix + "CONFIG"}},
			&cli.StringFlag{Name: "db", Usage: "override database_path"},
		},
		Before: func(c *cli.Context) error {
			return logger.InitWithFormat("text", os.Stderr)
		},
		Commands: []*cli.Command{
			migrateCommand(),
			ingestCommand(),
			exportCommand(),
			leaderboardCommand(),
			tokenCommand(),
			simulateCommand(),
		},
	}
}

// loadConfig honours --config and --db on top of the usual layering.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", path); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(c.Context)
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.DatabasePath = db
	}
	return cfg, nil
}

// openRaw opens the database without migrating it.
func openRaw(cfg *config.Config) (*repository.Store, error) {
	return repository.Open(cfg.DatabasePath)
}

// withService builds and starts the service for the duration of fn.
func withService(c *cli.Context, fn func(ctx context.Context, svc *service.Service) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.LeaderboardInterval = 0
	rt, err := service.Build(c.Context, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	if err := rt.Service.Start(c.Context); err != nil {
		return err
	}
	return fn(c.Context, rt.Service)
}

func migrateCommand() *cli.Command {
	withMigrator := func(action func(c *cli.Context, cfg *config.Config) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return action(c, cfg)
		}
	}
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: withMigrator(func(c *cli.Context, cfg *config.Config) error {
					store, err := openRaw(cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.Migrator().Init(c.Context)
				}),
			},
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: withMigrator(func(c *cli.Context, cfg *config.Config) error {
					store, err := openRaw(cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					group, err := store.Migrate(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Fprintln(c.App.Writer, "no new migrations to run")
						return nil
					}
					fmt.Fprintf(c.App.Writer, "migrated to %s\n", group)
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group",
				Action: withMigrator(func(c *cli.Context, cfg *config.Config) error {
					store, err := openRaw(cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					group, err := store.Migrator().Rollback(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Fprintln(c.App.Writer, "no groups to roll back")
						return nil
					}
					fmt.Fprintf(c.App.Writer, "rolled back %s\n", group)
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: withMigrator(func(c *cli.Context, cfg *config.Config) error {
					store, err := openRaw(cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					ms, err := store.Migrator().MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "migrations: %s\n", ms)
					fmt.Fprintf(c.App.Writer, "applied: %s\n", ms.Applied())
					fmt.Fprintf(c.App.Writer, "unapplied: %s\n", ms.Unapplied())
					return nil
				}),
			},
		},
	}
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "ingest division schedules; every division when none is named",
		ArgsUsage: "[division...]",
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *service.Service) error {
				if c.NArg() == 0 {
					reports, err := svc.StartSeason(ctx)
					for _, rep := range reports {
						fmt.Fprintf(c.App.Writer, "%s: %d matches over %d weeks, %d teams\n", rep.Division, rep.Matches, rep.Weeks, rep.Teams)
					}
					return err
				}
				for _, name := range c.Args().Slice() {
					rep, err := svc.IngestDivision(ctx, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s: %d matches over %d weeks, %d teams\n", rep.Division, rep.Matches, rep.Weeks, rep.Teams)
				}
				return svc.Export(ctx, "ingest")
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "publish the full match table now",
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *service.Service) error {
				return svc.Export(ctx, "cli")
			})
		},
	}
}

func leaderboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "leaderboard",
		Usage: "print the leaderboard announcement",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "publish", Usage: "also post it to the announcement channel"},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *service.Service) error {
				text, err := svc.Leaderboard(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, text)
				if c.Bool("publish") {
					return svc.PublishLeaderboard(ctx)
				}
				return nil
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "access tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "sign an access token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "identity", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "role", Value: string(api.RolePlayer), Usage: "player, moderator or admin"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if cfg.JWTSecret == "" {
						return fmt.Errorf("jwt_secret must be set")
					}
					role := api.Role(c.String("role"))
					if !role.Allows(api.RolePlayer) {
						return fmt.Errorf("unknown role %q", role)
					}
					tok, err := api.NewAuthenticator(cfg.JWTSecret).Issue(c.String("identity"), c.String("name"), role, c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, tok)
					return nil
				},
			},
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "drive a simulated season against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080"},
			&cli.StringFlag{Name: "division", Value: "Test"},
			&cli.IntFlag{Name: "players", Value: 8},
			&cli.IntFlag{Name: "submissions", Value: 50},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU()},
			&cli.Float64Flag{Name: "approve", Value: 0.9, Usage: "share of submissions approved"},
			&cli.BoolFlag{Name: "start-season", Usage: "ingest schedules first"},
			&cli.Int64Flag{Name: "seed"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second},
			&cli.StringFlag{Name: "output", Usage: "JSON report file"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			stats, err := seasonsim.Run(c.Context, &seasonsim.Config{
				BaseURL:      c.String("url"),
				Secret:       cfg.JWTSecret,
				Division:     c.String("division"),
				Players:      c.Int("players"),
				Submissions:  c.Int("submissions"),
				Workers:      c.Int("workers"),
				ApproveRatio: c.Float64("approve"),
				StartSeason:  c.Bool("start-season"),
				Seed:         c.Int64("seed"),
				Timeout:      c.Duration("timeout"),
				OutputFile:   c.String("output"),
			})
			if stats != nil {
				fmt.Fprintf(c.App.Writer, "approved=%d rejected=%d conflicts=%d failed=%d\n",
					stats.Approved, stats.Rejected, stats.Conflicts, stats.Failed)
			}
			return err
		},
	}
}
