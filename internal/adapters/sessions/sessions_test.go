package sessions

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/league/internal/domain/workflow"
)

func stores(t *testing.T) map[string]workflow.Store {
	t.Helper()
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]workflow.Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
}

func session(id string, state workflow.State, created time.Time) workflow.Session {
	return workflow.Session{
		ID:        id,
		Division:  "Poke",
		Submitter: "alice",
		State:     state,
		Offered:   []workflow.Choice{{Label: "W1 AB Vs. CD", Value: "Poke|Alpha Bravo|Charlie Delta"}},
		CreatedAt: created,
		UpdatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}
}

func TestStoreContract(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "missing")
			require.ErrorIs(t, err, workflow.ErrSessionNotFound)

			require.NoError(t, store.Create(ctx, session("b", workflow.StatePendingReview, base.Add(time.Minute))))
			require.NoError(t, store.Create(ctx, session("a", workflow.StatePendingReview, base)))
			require.NoError(t, store.Create(ctx, session("c", workflow.StateSelectMatch, base)))

			got, err := store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "alice", got.Submitter)
			assert.True(t, got.CreatedAt.Equal(base))
			assert.Len(t, got.Offered, 1)

			updated, err := store.Update(ctx, "c", func(s *workflow.Session) error {
				s.MatchID = s.Offered[0].Value
				s.State = workflow.StateSelectOpponent
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, workflow.StateSelectOpponent, updated.State)

			boom := errors.New("boom")
			_, err = store.Update(ctx, "c", func(s *workflow.Session) error {
				s.State = workflow.StateConfirm
				return boom
			})
			require.ErrorIs(t, err, boom)
			got, err = store.Get(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, workflow.StateSelectOpponent, got.State, "failed update must not persist")

			pending, err := store.List(ctx, workflow.StatePendingReview)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "a", pending[0].ID)
			assert.Equal(t, "b", pending[1].ID)

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			expired, err := store.DeleteExpired(ctx, base.Add(time.Hour+30*time.Second))
			require.NoError(t, err)
			require.Len(t, expired, 2)
			assert.ElementsMatch(t, []string{"a", "c"}, []string{expired[0].ID, expired[1].ID})

			require.NoError(t, store.Delete(ctx, "b"))
			n, err = store.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestUpdateSerializes(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Create(ctx, session("s", workflow.StatePendingReview, time.Now())))

			var wg sync.WaitGroup
			var mu sync.Mutex
			claimed := 0
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Update(ctx, "s", func(s *workflow.Session) error {
						if s.State != workflow.StatePendingReview {
							return workflow.ErrWrongState
						}
						s.State = workflow.StateCommitting
						return nil
					})
					if err == nil {
						mu.Lock()
						claimed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, claimed)
		})
	}
}

func TestBoltSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, session("keep", workflow.StateConfirm, time.Now())))
	require.NoError(t, store.Close())

	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateConfirm, got.State)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, session("s", workflow.StateSelectMatch, time.Now())))

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	got.Offered[0].Label = "changed"

	again, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "W1 AB Vs. CD", again.Offered[0].Label)
}
