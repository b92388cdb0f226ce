// Package state persists small JSON documents keyed by (kind, id), such as
// the playlist position restored at startup.
package state

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store keeps one JSON document per (kind, id) in the resource_state table.
// Every write bumps the row's version, so version 0 means never written.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a store on an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the document and its version, or nil and 0 if there is none.
func (s *Store) Get(kind, id string) ([]byte, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		doc     string
		version int64
	)
	err := s.db.QueryRow(
		`SELECT payload, version FROM resource_state WHERE kind = ? AND id = ?`,
		kind, id,
	).Scan(&doc, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, 0, nil
	case err != nil:
		return nil, 0, err
	}
	return []byte(doc), version, nil
}

// Set writes the document, inserting the row on first use.
func (s *Store) Set(kind, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO resource_state (kind, id, payload, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			version = version + 1,
			updated_at = excluded.updated_at
	`, kind, id, string(doc), time.Now().UTC().Unix())
	if err != nil {
		return err
	}

	log.Trace().Str("kind", kind).Str("id", id).RawJSON("state", doc).Msg("State saved")
	return nil
}

// Delete drops the document. Deleting a missing document is not an error.
func (s *Store) Delete(kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM resource_state WHERE kind = ? AND id = ?`, kind, id)
	return err
}
