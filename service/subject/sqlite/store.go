package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/service/subject"
)

// Store keeps subject state in the subject_state table.
type Store struct {
	db *sql.DB
}

// Get returns the stored fingerprint.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint FROM subject_state WHERE subject_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put upserts the fingerprint.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subject_state (subject_key, fingerprint, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (subject_key) DO UPDATE SET fingerprint = excluded.fingerprint, updated_at = excluded.updated_at`,
		key, value, clock.Now().UnixMilli(),
	)
	return err
}

// New creates a store over a database opened by service/dao/sqlite.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ subject.Store = (*Store)(nil)
