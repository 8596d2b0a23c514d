// Package script owns the mapping from a content id to its ordered block
// sequence. Blocks are opaque; the store only supports sequence-level read
// and atomic replace. Every replace bumps a version counter that the
// lifecycle coordinator uses to detect generation results made stale by a
// newer user edit.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/reelforge/reelforge/internal/models"
)

var bucketScripts = []byte("scripts")

// Store is a BoltDB-backed script store
type Store struct {
	db *bolt.DB
}

// NewStore opens (creating if needed) the script database at path
func NewStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open script database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketScripts); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketScripts, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the script for a content id, or models.ErrNotFound.
func (s *Store) Get(contentID string) (*models.Script, error) {
	var script *models.Script

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketScripts).Get([]byte(contentID))
		if data == nil {
			return models.ErrNotFound
		}

		var sc models.Script
		if err := json.Unmarshal(data, &sc); err != nil {
			return fmt.Errorf("failed to unmarshal script: %w", err)
		}
		script = &sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	return script, nil
}

// Version returns the current script version for a content id, 0 when no
// script has been written yet.
func (s *Store) Version(contentID string) (int64, error) {
	sc, err := s.Get(contentID)
	if errors.Is(err, models.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sc.Version, nil
}

// Replace overwrites the whole block sequence, last writer wins. This is
// the user-edit path. The sequence is stored as a single atomic unit; there
// is no partial-block mutation at this layer.
func (s *Store) Replace(contentID string, blocks []json.RawMessage) (*models.Script, error) {
	return s.replace(contentID, blocks, -1)
}

// CompareAndReplace overwrites the block sequence only when the current
// version still equals baseVersion, returning models.ErrStaleScript
// otherwise. This is the generation-merge path: baseVersion is the version
// observed when the job was dispatched.
func (s *Store) CompareAndReplace(contentID string, blocks []json.RawMessage, baseVersion int64) (*models.Script, error) {
	return s.replace(contentID, blocks, baseVersion)
}

func (s *Store) replace(contentID string, blocks []json.RawMessage, baseVersion int64) (*models.Script, error) {
	if blocks == nil {
		blocks = []json.RawMessage{}
	}

	var script *models.Script

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketScripts)

		var current int64
		if data := bucket.Get([]byte(contentID)); data != nil {
			var existing models.Script
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("failed to unmarshal script: %w", err)
			}
			current = existing.Version
		}

		if baseVersion >= 0 && current != baseVersion {
			return fmt.Errorf("%w: have %d, merge based on %d", models.ErrStaleScript, current, baseVersion)
		}

		sc := models.Script{
			ContentID: contentID,
			Version:   current + 1,
			Blocks:    blocks,
			UpdatedAt: time.Now(),
		}

		data, err := json.Marshal(&sc)
		if err != nil {
			return fmt.Errorf("failed to marshal script: %w", err)
		}
		if err := bucket.Put([]byte(contentID), data); err != nil {
			return fmt.Errorf("failed to store script: %w", err)
		}

		script = &sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	return script, nil
}

// Delete removes the script for a content id. Missing entries are not an
// error.
func (s *Store) Delete(contentID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScripts).Delete([]byte(contentID))
	})
}
