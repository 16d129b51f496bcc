package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/adapters/http/api"
)

const testGrid = `,,Week 1,,,,,,,Week 2,,,,
,,Alpha,0,0,Beta,,,,Alpha,0,0,Gamma,
,,Gamma,0,0,Delta,,,,Beta,0,0,Delta,
`

func run(args ...string) (string, error) {
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"leaguectl"}, args...))
	return out.String(), err
}

func TestLeaguectl(t *testing.T) {
	convey.Convey("Given a scratch workspace", t, func() {
		dir := t.TempDir()
		db := filepath.Join(dir, "league.db")
		t.Setenv("LEAGUE_JWT_SECRET", "cli-secret")
		t.Setenv("LEAGUE_SCHEDULE_DIR", dir)
		t.Setenv("LEAGUE_EXPORT_SHEET_KEY", "matches.csv")
		convey.So(os.WriteFile(filepath.Join(dir, "test.csv"), []byte(testGrid), 0o600), convey.ShouldBeNil)

		convey.Convey("Migrations apply once", func() {
			out, err := run("--db", db, "migrate", "up")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "migrated to")

			out, err = run("--db", db, "migrate", "up")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "no new migrations")

			out, err = run("--db", db, "migrate", "status")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "unapplied: ")
		})

		convey.Convey("A named division is ingested and exported", func() {
			out, err := run("--db", db, "ingest", "Test")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "Test: 4 matches over 2 weeks, 4 teams")

			data, err := os.ReadFile(filepath.Join(dir, "matches.csv"))
			convey.So(err, convey.ShouldBeNil)
			convey.So(strings.Count(string(data), "\n"), convey.ShouldEqual, 5)
		})

		convey.Convey("Tokens verify against the configured secret", func() {
			out, err := run("token", "issue", "--identity", "mod-1", "--role", "moderator")
			convey.So(err, convey.ShouldBeNil)
			claims, err := api.NewAuthenticator("cli-secret").Verify(strings.TrimSpace(out))
			convey.So(err, convey.ShouldBeNil)
			convey.So(claims.Subject, convey.ShouldEqual, "mod-1")
			convey.So(claims.Role, convey.ShouldEqual, api.RoleModerator)

			_, err = run("token", "issue", "--identity", "x", "--role", "guest")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
