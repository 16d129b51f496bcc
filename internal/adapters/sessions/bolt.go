package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/okian/league/internal/domain/workflow"
)

const sessionBucket = "sessions"

// BoltStore keeps sessions as JSON values in a bbolt bucket. bbolt runs one
// write transaction at a time, which serializes Update per file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the session file at path.
func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session store path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying file.
func (b *BoltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BoltStore) Create(ctx context.Context, s workflow.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket([]byte(sessionBucket)), s)
	})
}

func (b *BoltStore) Get(ctx context.Context, id string) (workflow.Session, error) {
	if err := ctx.Err(); err != nil {
		return workflow.Session{}, err
	}
	var s workflow.Session
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		s, err = get(tx.Bucket([]byte(sessionBucket)), id)
		return err
	})
	return s, err
}

func (b *BoltStore) Update(ctx context.Context, id string, fn func(*workflow.Session) error) (workflow.Session, error) {
	if err := ctx.Err(); err != nil {
		return workflow.Session{}, err
	}
	var s workflow.Session
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		var err error
		if s, err = get(bucket, id); err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}
		return put(bucket, s)
	})
	if err != nil {
		return workflow.Session{}, err
	}
	return s, nil
}

func (b *BoltStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete([]byte(id))
	})
}

func (b *BoltStore) List(ctx context.Context, state workflow.State) ([]workflow.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]workflow.Session, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).ForEach(func(_, v []byte) error {
			var s workflow.Session
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}
			if s.State == state {
				out = append(out, s)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	byCreation(out)
	return out, nil
}

func (b *BoltStore) DeleteExpired(ctx context.Context, now time.Time) ([]workflow.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []workflow.Session
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var s workflow.Session
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}
			if s.Expired(now) {
				out = append(out, s)
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreation(out)
	return out, nil
}

func (b *BoltStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(sessionBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func get(bucket *bbolt.Bucket, id string) (workflow.Session, error) {
	payload := bucket.Get([]byte(id))
	if payload == nil {
		return workflow.Session{}, workflow.ErrSessionNotFound
	}
	var s workflow.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return workflow.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return s, nil
}

func put(bucket *bbolt.Bucket, s workflow.Session) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return bucket.Put([]byte(s.ID), payload)
}
