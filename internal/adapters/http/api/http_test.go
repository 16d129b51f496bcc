package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/league/internal/adapters/http/api"
	"github.com/okian/league/internal/adapters/mq/queue"
	"github.com/okian/league/internal/adapters/notify"
	service "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/types"
	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
)

type mockDeps struct {
	players   map[string]model.Player
	top       []types.Entry
	events    []workflow.Event
	reviews   []workflow.Event
	exports   []queue.Job
	seasonErr error
	pingErr   error
	queueErr  error
	published int
}

func newMockDeps() *mockDeps {
	return &mockDeps{players: map[string]model.Player{}}
}

func (m *mockDeps) Register(_ context.Context, identity, name string) (model.Player, bool, error) {
	if p, ok := m.players[identity]; ok {
		return p, false, nil
	}
	p := model.Player{Identity: identity, DisplayName: name, Rating: model.DefaultRating}
	m.players[identity] = p
	return p, true, nil
}

func (m *mockDeps) PlayerCard(_ context.Context, identity string) (types.PlayerCard, error) {
	p, ok := m.players[identity]
	if !ok {
		return types.PlayerCard{}, fmt.Errorf("%w: %s", workflow.ErrNotRegistered, identity)
	}
	return types.PlayerCard{PlayerID: p.Identity, DisplayName: p.DisplayName, Rating: p.Rating, Rank: 1}, nil
}

func (m *mockDeps) AllPlayers(_ context.Context, page int) (types.Page, error) {
	if page < 1 {
		return types.Page{}, service.ErrInvalidPage
	}
	return types.Page{Page: page, TotalPages: 1, Total: len(m.top), Players: m.top}, nil
}

func (m *mockDeps) AssignDivision(_ context.Context, ids []string, division string) ([]model.Player, error) {
	if division != "Poke" {
		return nil, fmt.Errorf("%w: %q", schedule.ErrUnknownDivision, division)
	}
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Player{Identity: id, Rating: model.DefaultRating, Division: division})
	}
	return out, nil
}

func (m *mockDeps) RatingHistory(_ context.Context, identity string, limit int) ([]model.RatingChange, error) {
	return []model.RatingChange{{MatchID: "m1", Identity: identity, Before: 1200, After: 1216, Delta: 16}}, nil
}

func (m *mockDeps) Notices(recipient string) []notify.Notice {
	if recipient == notify.Moderators {
		return []notify.Notice{{ID: "n1", Recipient: recipient, Text: "review me"}}
	}
	return nil
}

func (m *mockDeps) StartSeason(context.Context) ([]schedule.Report, error) {
	return []schedule.Report{{Division: "Poke", Matches: 4, Weeks: 2, Teams: 4}}, m.seasonErr
}

func (m *mockDeps) RequestExport(_ context.Context, job queue.Job) error {
	if m.queueErr != nil {
		return m.queueErr
	}
	m.exports = append(m.exports, job)
	return nil
}

func (m *mockDeps) StartSubmission(_ context.Context, division, submitter string) (workflow.Prompt, error) {
	if division != "Poke" {
		return workflow.Prompt{}, fmt.Errorf("%w: %q", schedule.ErrUnknownDivision, division)
	}
	return workflow.Prompt{SessionID: "s1", State: workflow.StateSelectMatch, Kind: workflow.KindSelect}, nil
}

func (m *mockDeps) Step(_ context.Context, ev workflow.Event) (workflow.Prompt, error) {
	if ev.Value == "bogus" {
		return workflow.Prompt{}, workflow.ErrNotOffered
	}
	m.events = append(m.events, ev)
	return workflow.Prompt{SessionID: ev.SessionID, State: workflow.StateSelectOpponent, Kind: workflow.KindSelect}, nil
}

func (m *mockDeps) Submission(_ context.Context, id, actor string) (workflow.Prompt, error) {
	if actor != "alice" {
		return workflow.Prompt{}, workflow.ErrNotSubmitter
	}
	return workflow.Prompt{SessionID: id, State: workflow.StateSelectMatch}, nil
}

func (m *mockDeps) Review(_ context.Context, ev workflow.Event) (workflow.Prompt, error) {
	m.reviews = append(m.reviews, ev)
	return workflow.Prompt{SessionID: ev.SessionID, Kind: workflow.KindDone}, nil
}

func (m *mockDeps) PendingReviews(context.Context) ([]types.PendingReview, error) {
	return []types.PendingReview{{SessionID: "s1", Division: "Poke", Submitter: "alice"}}, nil
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if n > len(m.top) {
		return m.top, nil
	}
	return m.top[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, identity string) (types.Entry, error) {
	for _, e := range m.top {
		if e.PlayerID == identity {
			return e, nil
		}
	}
	return types.Entry{}, workflow.ErrNotRegistered
}

func (m *mockDeps) PublishLeaderboard(context.Context) error {
	m.published++
	return nil
}

func (m *mockDeps) Ready() bool { return m.pingErr == nil }
func (m *mockDeps) Ping(context.Context) error { return m.pingErr }
func (m *mockDeps) Stats(context.Context) map[string]any { return map[string]any{"started": true} }
func (m *mockDeps) Info() string { return "Available commands:" }

type harness struct {
	deps   *mockDeps
	auth   *api.Authenticator
	router chi.Router
}

func newHarness(opts ...api.Option) *harness {
	deps := newMockDeps()
	deps.top = []types.Entry{
		{Rank: 1, PlayerID: "alice", Rating: 1216},
		{Rank: 2, PlayerID: "bob", Rating: 1184},
	}
	auth := api.NewAuthenticator("test-secret")
	r := chi.NewRouter()
	opts = append([]api.Option{api.WithLogger(logger.Nop())}, opts...)
	api.NewServer(deps, auth, opts...).Register(r)
	return &harness{deps: deps, auth: auth, router: r}
}

func (h *harness) token(identity string, role api.Role) string {
	tok, err := h.auth.Issue(identity, strings.ToUpper(identity[:1])+identity[1:], role, time.Hour)
	So(err, ShouldBeNil)
	return tok
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestPublicRoutes(t *testing.T) {
	Convey("Given the API without credentials", t, func() {
		h := newHarness()

		Convey("Health reports ok", func() {
			w := h.do(http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Health reports unavailable when the store is down", func() {
			h.deps.pingErr = errors.New("db down")
			w := h.do(http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Leaderboard honours limit", func() {
			w := h.do(http.MethodGet, "/leaderboard?limit=1", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []types.Entry
			decodeBody(w, &entries)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].PlayerID, ShouldEqual, "alice")
		})

		Convey("Leaderboard rejects a bad limit", func() {
			w := h.do(http.MethodGet, "/leaderboard?limit=abc", "", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, `"code":"bad_request"`)
		})

		Convey("Rank finds a player", func() {
			w := h.do(http.MethodGet, "/rank/bob", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var e types.Entry
			decodeBody(w, &e)
			So(e.Rank, ShouldEqual, 2)
		})

		Convey("Rank of an unknown player is 404", func() {
			w := h.do(http.MethodGet, "/rank/nobody", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Info returns the help text", func() {
			w := h.do(http.MethodGet, "/info", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "Available commands:")
		})

		Convey("Metrics are exposed", func() {
			w := h.do(http.MethodGet, "/metrics", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Protected routes need a token", func() {
			w := h.do(http.MethodGet, "/players/me", "", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("A token signed with another secret is rejected", func() {
			other := api.NewAuthenticator("other")
			tok, err := other.Issue("alice", "Alice", api.RolePlayer, time.Hour)
			So(err, ShouldBeNil)
			w := h.do(http.MethodGet, "/players/me", tok, "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestPlayerRoutes(t *testing.T) {
	Convey("Given an authenticated player", t, func() {
		h := newHarness()
		tok := h.token("alice", api.RolePlayer)

		Convey("Registering twice creates once", func() {
			w := h.do(http.MethodPost, "/players/register", tok, "")
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, "You have been registered with an initial rating of 1200.")

			w = h.do(http.MethodPost, "/players/register", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "You are already registered.")
		})

		Convey("The player card needs registration", func() {
			w := h.do(http.MethodGet, "/players/me", tok, "")
			So(w.Code, ShouldEqual, http.StatusNotFound)

			h.do(http.MethodPost, "/players/register", tok, "")
			w = h.do(http.MethodGet, "/players/me", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var card types.PlayerCard
			decodeBody(w, &card)
			So(card.Rating, ShouldEqual, 1200)
			So(card.DisplayName, ShouldEqual, "Alice")
		})

		Convey("History lists rating changes", func() {
			w := h.do(http.MethodGet, "/players/me/history", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"delta":16`)
		})

		Convey("A submission walks through steps", func() {
			w := h.do(http.MethodPost, "/submissions", tok, `{"division":"Poke"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var p workflow.Prompt
			decodeBody(w, &p)
			So(p.SessionID, ShouldEqual, "s1")

			w = h.do(http.MethodPost, "/submissions/s1/steps", tok, `{"interaction_id":"i1","value":"m1"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(h.deps.events, ShouldHaveLength, 1)
			So(h.deps.events[0].Actor, ShouldEqual, "alice")
			So(h.deps.events[0].SessionID, ShouldEqual, "s1")

			w = h.do(http.MethodGet, "/submissions/s1", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Submission errors map to statuses", func() {
			w := h.do(http.MethodPost, "/submissions", tok, `{"division":"Ultra"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "unknown_division")

			w = h.do(http.MethodPost, "/submissions", tok, `{"division":""}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = h.do(http.MethodPost, "/submissions", tok, `{"division":"Poke","extra":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = h.do(http.MethodPost, "/submissions/s1/steps", tok, `{"value":"m1"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = h.do(http.MethodPost, "/submissions/s1/steps", tok, `{"interaction_id":"i2","value":"bogus"}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(w.Body.String(), ShouldContainSubstring, "invalid_selection")
		})

		Convey("Another player cannot read the session", func() {
			w := h.do(http.MethodGet, "/submissions/s1", h.token("bob", api.RolePlayer), "")
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("Moderator and admin routes are forbidden", func() {
			So(h.do(http.MethodGet, "/reviews", tok, "").Code, ShouldEqual, http.StatusForbidden)
			So(h.do(http.MethodPost, "/season/start", tok, "").Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestModeratorRoutes(t *testing.T) {
	Convey("Given an authenticated moderator", t, func() {
		h := newHarness()
		tok := h.token("mod", api.RoleModerator)

		Convey("Pending reviews are listed", func() {
			w := h.do(http.MethodGet, "/reviews", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var list []types.PendingReview
			decodeBody(w, &list)
			So(list, ShouldHaveLength, 1)
		})

		Convey("A review is forwarded with the moderator as actor", func() {
			w := h.do(http.MethodPost, "/reviews/s1", tok, `{"interaction_id":"r1","accept":true}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(h.deps.reviews, ShouldHaveLength, 1)
			So(h.deps.reviews[0].Actor, ShouldEqual, "mod")
			So(h.deps.reviews[0].Accept, ShouldBeTrue)
		})

		Convey("Moderation notices are readable", func() {
			w := h.do(http.MethodGet, "/notices/moderation", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "review me")
		})

		Convey("Own notices default to an empty list", func() {
			w := h.do(http.MethodGet, "/notices", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("Admin routes stay forbidden", func() {
			So(h.do(http.MethodGet, "/stats", tok, "").Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestAdminRoutes(t *testing.T) {
	Convey("Given an authenticated admin", t, func() {
		h := newHarness()
		tok := h.token("root", api.RoleAdmin)

		Convey("Admins may also moderate", func() {
			So(h.do(http.MethodGet, "/reviews", tok, "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Players are paged", func() {
			w := h.do(http.MethodGet, "/players?page=1", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(h.do(http.MethodGet, "/players?page=0", tok, "").Code, ShouldEqual, http.StatusBadRequest)
			So(h.do(http.MethodGet, "/players?page=x", tok, "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Division assignment validates the division", func() {
			w := h.do(http.MethodPost, "/divisions/Poke/players", tok, `{"player_ids":["alice","bob"]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"division":"Poke"`)

			w = h.do(http.MethodPost, "/divisions/Ultra/players", tok, `{"player_ids":["alice"]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Season start reports each division", func() {
			w := h.do(http.MethodPost, "/season/start", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"matches":4`)
		})

		Convey("Season start with a failing division is a partial success", func() {
			h.deps.seasonErr = errors.Join(errors.New("Ultra: sheet not found"))
			w := h.do(http.MethodPost, "/season/start", tok, "")
			So(w.Code, ShouldEqual, http.StatusMultiStatus)
			So(w.Body.String(), ShouldContainSubstring, "Ultra: sheet not found")
		})

		Convey("Export is queued", func() {
			w := h.do(http.MethodPost, "/season/export", tok, "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(h.deps.exports, ShouldHaveLength, 1)
			So(h.deps.exports[0].Reason, ShouldEqual, "manual")
		})

		Convey("A full export queue is 429", func() {
			h.deps.queueErr = service.ErrQueueFull
			w := h.do(http.MethodPost, "/season/export", tok, "")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("The leaderboard can be published on demand", func() {
			w := h.do(http.MethodPost, "/leaderboard/publish", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(h.deps.published, ShouldEqual, 1)
		})

		Convey("Stats are returned", func() {
			w := h.do(http.MethodGet, "/stats", tok, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a burst of two requests per caller", t, func() {
		h := newHarness(api.WithRateLimit(0.001, 2))
		alice := h.token("alice", api.RolePlayer)
		bob := h.token("bob", api.RolePlayer)

		Convey("The third request is limited per identity", func() {
			So(h.do(http.MethodGet, "/notices", alice, "").Code, ShouldEqual, http.StatusOK)
			So(h.do(http.MethodGet, "/notices", alice, "").Code, ShouldEqual, http.StatusOK)
			w := h.do(http.MethodGet, "/notices", alice, "")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Body.String(), ShouldContainSubstring, "rate_limited")

			So(h.do(http.MethodGet, "/notices", bob, "").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestRoles(t *testing.T) {
	Convey("Roles nest", t, func() {
		So(api.RoleAdmin.Allows(api.RoleModerator), ShouldBeTrue)
		So(api.RoleAdmin.Allows(api.RolePlayer), ShouldBeTrue)
		So(api.RoleModerator.Allows(api.RoleAdmin), ShouldBeFalse)
		So(api.RolePlayer.Allows(api.RolePlayer), ShouldBeTrue)
		So(api.Role("guest").Allows(api.RolePlayer), ShouldBeFalse)
	})

	Convey("Tokens round-trip and reject unknown roles", t, func() {
		a := api.NewAuthenticator("s")
		tok, err := a.Issue("alice", "Alice", api.RoleModerator, time.Minute)
		So(err, ShouldBeNil)
		claims, err := a.Verify(tok)
		So(err, ShouldBeNil)
		So(claims.Subject, ShouldEqual, "alice")
		So(claims.Role, ShouldEqual, api.RoleModerator)

		bad, err := a.Issue("alice", "Alice", api.Role("guest"), time.Minute)
		So(err, ShouldBeNil)
		_, err = a.Verify(bad)
		So(errors.Is(err, api.ErrUnauthorized), ShouldBeTrue)

		expired, err := a.Issue("alice", "Alice", api.RolePlayer, -time.Minute)
		So(err, ShouldBeNil)
		_, err = a.Verify(expired)
		So(errors.Is(err, api.ErrUnauthorized), ShouldBeTrue)
	})
}
