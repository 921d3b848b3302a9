// Package session is the client-side store: persistent credentials that
// survive restarts, and a session-scoped bucket that holds the evaluation
// draft between workflow steps and is wiped when a new interactive session
// begins.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kingrea/report-evaluator/internal/workflow"
)

// Bucket and key names inside state.db.
var (
	bucketCredentials = []byte("credentials")
	bucketSession     = []byte("session")

	keyAccessToken = "access_token"
	keyUserInfo    = "user_info"
	keyDraft       = "evaluation_draft"
)

// FileName is the bbolt database name inside the client directory.
const FileName = "state.db"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("session: key not found")

// Store wraps the bbolt database backing the client state.
type Store struct {
	db   *bbolt.DB
	path string
}

// Open opens (or creates) the store at path with both buckets present.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("session: ensure dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCredentials, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create buckets: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file backing this store.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close releases the database file lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginSession wipes session-scoped state so a fresh interactive run never
// sees a draft left behind by an earlier one.
func (s *Store) BeginSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketSession); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
}

// Token returns the stored bearer token, or "" when logged out.
func (s *Store) Token() string {
	var token string
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketCredentials).Get([]byte(keyAccessToken)); v != nil {
			token = string(v)
		}
		return nil
	})
	return token
}

// SaveToken persists the bearer token.
func (s *Store) SaveToken(token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCredentials).Put([]byte(keyAccessToken), []byte(token))
	})
}

// SaveUser caches the current user's info as JSON.
func (s *Store) SaveUser(user any) error {
	return put(s, bucketCredentials, keyUserInfo, user)
}

// LoadUser decodes the cached user info into out.
func (s *Store) LoadUser(out any) error {
	return get(s, bucketCredentials, keyUserInfo, out)
}

// ClearCredentials drops the token and cached user info.
func (s *Store) ClearCredentials() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		if err := b.Delete([]byte(keyAccessToken)); err != nil {
			return err
		}
		return b.Delete([]byte(keyUserInfo))
	})
}

// LoadDraft implements workflow.DraftStore.
func (s *Store) LoadDraft() (workflow.Draft, error) {
	var draft workflow.Draft
	if err := get(s, bucketSession, keyDraft, &draft); err != nil {
		if errors.Is(err, ErrNotFound) {
			return workflow.Draft{}, workflow.ErrDraftNotFound
		}
		return workflow.Draft{}, err
	}
	return draft, nil
}

// SaveDraft implements workflow.DraftStore.
func (s *Store) SaveDraft(draft workflow.Draft) error {
	return put(s, bucketSession, keyDraft, draft)
}

// ClearDraft implements workflow.DraftStore.
func (s *Store) ClearDraft() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete([]byte(keyDraft))
	})
}

func put(s *Store, bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func get(s *Store, bucket []byte, key string, out any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(v, out); err != nil {
			return fmt.Errorf("session: decode %s: %w", key, err)
		}
		return nil
	})
}
