// Package watermark remembers the highest alert id each notifier has handled.
package watermark

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dairysense/internal/adapters/storage"
)

// Store persists named watermarks.
type Store interface {
	// Get returns the watermark. ok is false when none was ever recorded,
	// which is distinct from a recorded 0.
	Get(ctx context.Context, name string) (id int, ok bool, err error)

	// Advance raises the watermark to id. Lower values are ignored.
	// POST: stored value is max(previous, id)
	Advance(ctx context.Context, name string, id int) error
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on the alert_watermark table.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a watermark store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the watermark and whether a row exists.
func (s *SQLiteStore) Get(ctx context.Context, name string) (int, bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `SELECT last_id FROM alert_watermark WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Advance raises the watermark to id.
func (s *SQLiteStore) Advance(ctx context.Context, name string, id int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_watermark (name, last_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   last_id = MAX(last_id, excluded.last_id), updated_at = excluded.updated_at`,
		name, id, time.Now().UTC().Format(time.RFC3339))
	return err
}
