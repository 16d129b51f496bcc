// Package standings keeps an in-memory ranking of players by rating.
//
// Ordering: rating DESC, then identity ASC. Writers update a treap under a
// mutex and publish an immutable Snapshot; readers only load the snapshot.
package standings

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/types"
	"github.com/okian/league/pkg/metrics"
)

// Snapshot is an immutable view of the ranking.
type Snapshot struct {
	// Ordered holds every player, best first, with ranks assigned.
	Ordered []types.Entry
	// Index maps identity to its position in Ordered.
	Index   map[string]int
	TakenAt time.Time
}

type record struct {
	rating   int
	name     string
	division string
	version  int
}

type node struct {
	id     string
	rating int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aRating, aID) ranks before (bRating, bID).
func less(aRating int, aID string, bRating int, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, rating int) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: rand.Uint64(), size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating int) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	case less(rating, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, rating)
	default:
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// collect appends every node in rank order.
func collect(n *node, byID map[string]record, out *[]types.Entry) {
	if n == nil {
		return
	}
	collect(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, types.Entry{
			PlayerID:    n.id,
			DisplayName: rec.name,
			Rating:      rec.rating,
			Division:    rec.division,
		})
	}
	collect(n.right, byID, out)
}

// assignRanksWithTies gives equal ratings the same rank; the next distinct
// rating takes the next rank (1, 1, 2).
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Rating != entries[i-1].Rating {
			rank++
		}
		entries[i].Rank = rank
	}
}

// Standings is the treap-backed ranking.
type Standings struct {
	mu   sync.Mutex
	root *node
	byID map[string]record

	snapshot atomic.Pointer[Snapshot]
	now      func() time.Time
}

// New returns empty Standings.
func New(opts ...Option) *Standings {
	s := &Standings{
		byID: make(map[string]record),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publish()
	return s
}

// Load replaces the ranking with players.
func (s *Standings) Load(_ context.Context, players []model.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = nil
	s.byID = make(map[string]record, len(players))
	for _, p := range players {
		s.byID[p.Identity] = toRecord(p)
		s.root = insert(s.root, p.Identity, p.Rating)
	}
	s.publish()
}

// Set inserts or moves players and publishes one snapshot for the batch.
// A player whose Version is below the stored one is ignored.
func (s *Standings) Set(_ context.Context, players ...model.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		if old, ok := s.byID[p.Identity]; ok {
			if p.Version < old.version {
				continue
			}
			s.root = deleteNode(s.root, p.Identity, old.rating)
		}
		s.byID[p.Identity] = toRecord(p)
		s.root = insert(s.root, p.Identity, p.Rating)
	}
	s.publish()
}

func toRecord(p model.Player) record {
	return record{rating: p.Rating, name: p.DisplayName, division: p.Division, version: p.Version}
}

// Remove drops a player from the ranking.
func (s *Standings) Remove(_ context.Context, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[identity]
	if !ok {
		return
	}
	s.root = deleteNode(s.root, identity, old.rating)
	delete(s.byID, identity)
	s.publish()
}

// publish rebuilds the snapshot. Caller holds s.mu (or owns s exclusively).
func (s *Standings) publish() {
	ordered := make([]types.Entry, 0, len(s.byID))
	collect(s.root, s.byID, &ordered)
	assignRanksWithTies(ordered)
	index := make(map[string]int, len(ordered))
	for i, e := range ordered {
		index[e.PlayerID] = i
	}
	taken := s.now()
	s.snapshot.Store(&Snapshot{Ordered: ordered, Index: index, TakenAt: taken})
	metrics.RecordStandingsSnapshot(taken.Unix())
	metrics.UpdatePlayers(len(ordered))
}

// Snapshot returns the latest published snapshot.
func (s *Standings) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Rank returns the ranked entry of identity.
func (s *Standings) Rank(_ context.Context, identity string) (types.Entry, error) {
	snap := s.snapshot.Load()
	i, ok := snap.Index[identity]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	return snap.Ordered[i], nil
}

// TopN returns up to n entries, best first.
func (s *Standings) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	snap := s.snapshot.Load()
	n = min(n, len(snap.Ordered))
	out := make([]types.Entry, n)
	copy(out, snap.Ordered[:n])
	return out, nil
}

// Count returns the number of ranked players.
func (s *Standings) Count(_ context.Context) int {
	return len(s.snapshot.Load().Ordered)
}
