package service_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/adapters/sheets"
	service "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const pokeGrid = `,,Week 1,,,,,,,Week 2,,,,
,,Alpha,0,0,Beta,,,,Alpha,0,0,Gamma,
,,Gamma,0,0,Delta,,,,Beta,0,0,Delta,
`

type harness struct {
	svc *service.Service
	bus *notify.Bus
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	store, err := repository.Open(repository.MemoryPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus, err := notify.New(notify.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	go func() { _ = bus.Run(ctx) }()
	<-bus.Running()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "poke.csv"), []byte(pokeGrid), 0o600); err != nil {
		t.Fatalf("write grid: %v", err)
	}
	src := sheets.NewFileSource(dir)

	svc := service.New(
		service.WithStore(store),
		service.WithNotifier(bus),
		service.WithScheduleSource(src),
		service.WithPublisher(src, "matches.csv"),
		service.WithDivision("Poke", "poke", 32),
		service.WithDivision("Ultra", "ultra", 16),
		service.WithLeaderboard(0, 20),
		service.WithPageSize(2),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		svc.Stop()
		cancel()
		_ = bus.Close()
		_ = store.Close()
	})
	return &harness{svc: svc, bus: bus, dir: dir}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func readExport(dir string) [][]string {
	f, err := os.Open(filepath.Join(dir, "matches.csv"))
	if err != nil {
		return nil
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil
	}
	return rows
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Then operations report it", func() {
			_, err := svc.TopN(context.Background(), 5)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.Ready(), ShouldBeFalse)
		})

		Convey("Then Start requires a store", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrMissingDependency), ShouldBeTrue)
		})
	})
}

func TestService_Players(t *testing.T) {
	Convey("Given a started service", t, func() {
		h := newHarness(t)
		ctx := context.Background()

		Convey("Registering twice is a no-op the second time", func() {
			p, created, err := h.svc.Register(ctx, "alice", "Alice")
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			So(p.Rating, ShouldEqual, 1200)

			_, created, err = h.svc.Register(ctx, "alice", "Alice")
			So(err, ShouldBeNil)
			So(created, ShouldBeFalse)
		})

		Convey("Unknown players have no card", func() {
			_, err := h.svc.PlayerCard(ctx, "nobody")
			So(errors.Is(err, service.ErrNotRegistered), ShouldBeTrue)
		})

		Convey("Division assignment validates the division and every player", func() {
			_, _, _ = h.svc.Register(ctx, "alice", "Alice")

			_, err := h.svc.AssignDivision(ctx, []string{"alice"}, "Gold")
			So(errors.Is(err, service.ErrUnknownDivision), ShouldBeTrue)

			_, err = h.svc.AssignDivision(ctx, []string{"alice", "ghost"}, "poke")
			So(errors.Is(err, service.ErrNotRegistered), ShouldBeTrue)
			card, _ := h.svc.PlayerCard(ctx, "alice")
			So(card.Division, ShouldEqual, "")

			moved, err := h.svc.AssignDivision(ctx, []string{" alice "}, "poke")
			So(err, ShouldBeNil)
			So(moved, ShouldHaveLength, 1)
			card, _ = h.svc.PlayerCard(ctx, "alice")
			So(card.Division, ShouldEqual, "Poke")
			So(card.Rank, ShouldEqual, 1)
		})

		Convey("All players are paged", func() {
			for _, id := range []string{"a", "b", "c"} {
				_, _, _ = h.svc.Register(ctx, id, strings.ToUpper(id))
			}
			page, err := h.svc.AllPlayers(ctx, 2)
			So(err, ShouldBeNil)
			So(page.Total, ShouldEqual, 3)
			So(page.TotalPages, ShouldEqual, 2)
			So(page.Players, ShouldHaveLength, 1)

			_, err = h.svc.AllPlayers(ctx, 0)
			So(errors.Is(err, service.ErrInvalidPage), ShouldBeTrue)
		})
	})
}

func TestService_Season(t *testing.T) {
	Convey("Given a started service with one schedule file", t, func() {
		h := newHarness(t)
		ctx := context.Background()

		Convey("When the season starts", func() {
			reports, err := h.svc.StartSeason(ctx)

			Convey("Then the known division is ingested and the missing one reported", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "Ultra")
				So(errors.Is(err, sheets.ErrSheetNotFound), ShouldBeTrue)
				So(reports, ShouldHaveLength, 1)
				So(reports[0].Division, ShouldEqual, "Poke")
				So(reports[0].Matches, ShouldEqual, 4)
				So(reports[0].Weeks, ShouldEqual, 2)
			})

			Convey("Then the match table is exported", func() {
				So(eventually(func() bool { return len(readExport(h.dir)) == 5 }), ShouldBeTrue)
				rows := readExport(h.dir)
				So(rows[0], ShouldResemble, sheets.Header)
			})

			Convey("Then ingesting the division again conflicts", func() {
				_, err := h.svc.IngestDivision(ctx, "Poke")
				So(errors.Is(err, repository.ErrDuplicateMatch), ShouldBeTrue)
			})
		})
	})
}

func TestService_Submission(t *testing.T) {
	Convey("Given two players in Poke and an ingested season", t, func() {
		h := newHarness(t)
		ctx := context.Background()
		_, _, _ = h.svc.Register(ctx, "alice", "Alice")
		_, _, _ = h.svc.Register(ctx, "bob", "Bob")
		_, err := h.svc.AssignDivision(ctx, []string{"alice", "bob"}, "Poke")
		So(err, ShouldBeNil)
		_, _ = h.svc.StartSeason(ctx)

		Convey("Unknown divisions are rejected before a session exists", func() {
			_, err := h.svc.StartSubmission(ctx, "Gold", "alice")
			So(errors.Is(err, service.ErrUnknownDivision), ShouldBeTrue)
		})

		Convey("When alice submits a 2-0 win and a moderator approves", func() {
			p, err := h.svc.StartSubmission(ctx, "poke", "alice")
			So(err, ShouldBeNil)
			So(p.Choices, ShouldHaveLength, 4)
			id := p.SessionID

			steps := []workflow.Event{
				{Value: "Poke|Alpha|Beta"},
				{Value: "bob"},
				{Value: "2-0"},
				{Replays: []string{"https://replays.example/1"}},
				{Accept: true},
			}
			for _, ev := range steps {
				ev.SessionID, ev.Actor = id, "alice"
				p, err = h.svc.Step(ctx, ev)
				So(err, ShouldBeNil)
			}
			So(p.State, ShouldEqual, workflow.StatePendingReview)

			pending, err := h.svc.PendingReviews(ctx)
			So(err, ShouldBeNil)
			So(pending, ShouldHaveLength, 1)
			So(pending[0].Text, ShouldStartWith, "New match submission for Poke division by alice")

			p, err = h.svc.Review(ctx, workflow.Event{SessionID: id, Actor: "mod", Accept: true, InteractionID: "rev-1"})
			So(err, ShouldBeNil)
			So(p.State, ShouldEqual, workflow.StateCommitted)

			Convey("Then ratings, ranks and the export reflect the result", func() {
				alice, _ := h.svc.PlayerCard(ctx, "alice")
				bob, _ := h.svc.PlayerCard(ctx, "bob")
				So(alice.Rating, ShouldEqual, 1216)
				So(bob.Rating, ShouldEqual, 1184)
				So(alice.Rank, ShouldEqual, 1)
				So(bob.Rank, ShouldEqual, 2)

				top, err := h.svc.TopN(ctx, 1)
				So(err, ShouldBeNil)
				So(top[0].PlayerID, ShouldEqual, "alice")

				history, err := h.svc.RatingHistory(ctx, "alice", 5)
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 1)
				So(history[0].Delta, ShouldEqual, 16)

				So(eventually(func() bool {
					for _, row := range readExport(h.dir) {
						if len(row) > 5 && row[1] == "Alpha" && row[2] == "Beta" {
							return row[3] == "2" && row[4] == "-2" && row[5] == "1"
						}
					}
					return false
				}), ShouldBeTrue)

				So(eventually(func() bool {
					for _, n := range h.svc.Notices("alice") {
						if strings.Contains(n.Text, "1200 -> 1216") {
							return true
						}
					}
					return false
				}), ShouldBeTrue)
			})

			Convey("Then a replayed approval is acknowledged without a second commit", func() {
				again, err := h.svc.Review(ctx, workflow.Event{SessionID: id, Actor: "mod", Accept: true, InteractionID: "rev-1"})
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				alice, _ := h.svc.PlayerCard(ctx, "alice")
				So(alice.Rating, ShouldEqual, 1216)
			})

			Convey("Then the match is no longer offered", func() {
				p, err := h.svc.StartSubmission(ctx, "Poke", "bob")
				So(err, ShouldBeNil)
				for _, c := range p.Choices {
					So(c.Value, ShouldNotEqual, "Poke|Alpha|Beta")
				}
			})
		})

		Convey("Another player cannot read alice's session", func() {
			p, err := h.svc.StartSubmission(ctx, "Poke", "alice")
			So(err, ShouldBeNil)
			_, err = h.svc.Submission(ctx, p.SessionID, "bob")
			So(errors.Is(err, workflow.ErrNotSubmitter), ShouldBeTrue)
		})
	})
}

func TestRenderLeaderboard(t *testing.T) {
	Convey("Leaderboard lines carry position markers and a footer", t, func() {
		text := service.RenderLeaderboard(nil, 20, 24*time.Hour)
		So(text, ShouldContainSubstring, "No ranked players yet.")
		So(text, ShouldEndWith, "Updated every 24 hours")
	})
}
