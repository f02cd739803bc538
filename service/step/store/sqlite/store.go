package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/viant/stepflow/model/fault"
	"github.com/viant/stepflow/model/step"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/step/store"
)

// Store persists records in the step_records table.
type Store struct {
	db *sql.DB
}

// Get reads a record.
func (s *Store) Get(ctx context.Context, instanceID, name string) (*step.Record, error) {
	var (
		result      []byte
		stop        bool
		completedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT result, stop, completed_at FROM step_records WHERE instance_id = ? AND name = ?`,
		instanceID, name,
	).Scan(&result, &stop, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Persistence("get step record", err)
	}
	return &step.Record{
		InstanceID:  instanceID,
		Name:        name,
		Result:      result,
		Stop:        stop,
		CompletedAt: time.UnixMilli(completedAt).UTC(),
	}, nil
}

// Put inserts the record; an existing row wins.
func (s *Store) Put(ctx context.Context, record *step.Record) error {
	if record == nil {
		return dao.ErrNilEntity
	}
	if record.InstanceID == "" || record.Name == "" {
		return dao.ErrInvalidID
	}
	var result []byte
	if len(record.Result) > 0 {
		result = record.Result
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_records (instance_id, name, result, stop, completed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (instance_id, name) DO NOTHING`,
		record.InstanceID, record.Name, result, record.Stop, record.CompletedAt.UnixMilli(),
	)
	if err != nil {
		return fault.Persistence("put step record", err)
	}
	return nil
}

// New creates a store over a database opened by service/dao/sqlite.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)
