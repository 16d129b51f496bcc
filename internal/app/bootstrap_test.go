package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/config"
	"github.com/okian/league/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuild(t *testing.T) {
	Convey("Given a file-backed configuration", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, "poke.csv"), []byte(pokeGrid), 0o600), ShouldBeNil)

		cfg := config.New(ctx)
		cfg.DatabasePath = filepath.Join(dir, "league.db")
		cfg.ScheduleDir = dir
		cfg.ExportSheetKey = "matches.csv"
		cfg.SessionStore = "bolt"
		cfg.SessionStorePath = filepath.Join(dir, "sessions.db")
		cfg.LeaderboardInterval = 0
		cfg.Divisions = []config.Division{{Name: "Poke", SheetKey: "poke", KFactor: 32}}

		rt, err := service.Build(ctx, cfg, logger.Get())
		So(err, ShouldBeNil)
		Reset(func() { _ = rt.Close() })

		Convey("The service starts on the migrated store", func() {
			So(rt.Service.Start(ctx), ShouldBeNil)
			So(rt.Service.Ready(), ShouldBeTrue)
			So(rt.Service.Ping(ctx), ShouldBeNil)

			_, created, err := rt.Service.Register(ctx, "alice", "Alice")
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
		})

		Convey("A season start exports the match table to the schedule dir", func() {
			So(rt.Service.Start(ctx), ShouldBeNil)
			reports, err := rt.Service.StartSeason(ctx)
			So(err, ShouldBeNil)
			So(reports, ShouldHaveLength, 1)

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if _, err := os.Stat(filepath.Join(dir, "matches.csv")); err == nil {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			_, err = os.Stat(filepath.Join(dir, "matches.csv"))
			So(err, ShouldBeNil)
		})
	})
}
