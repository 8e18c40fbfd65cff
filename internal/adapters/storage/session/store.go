package session

import (
	"context"
	"errors"

	"dairysense/internal/adapters/storage"
	domain "dairysense/internal/domain/session"
)

// ErrNotFound is returned when the session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store defines the interface for console session persistence.
type Store interface {
	// Save persists a session, replacing any with the same id.
	// PRE: s.ID and s.APIToken are non-empty
	// POST: Session is retrievable until ExpiresAt
	Save(ctx context.Context, s domain.Session) error

	// Get returns a live session.
	// PRE: id is non-empty
	// POST: Returns ErrNotFound for unknown or expired sessions
	Get(ctx context.Context, id string) (domain.Session, error)

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes sessions past their expiry and returns how many.
	DeleteExpired(ctx context.Context) (int64, error)
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// SQLDB defines the database interface needed by the store.
type SQLDB interface {
	storage.SQLDB
}
