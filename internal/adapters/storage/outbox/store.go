package outbox

import (
	"context"

	"dairysense/internal/adapters/storage"
	domain "dairysense/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or sql.ErrNoRows
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Enqueue inserts a new entry unless one with the same dedup key exists.
	// PRE: e has been validated
	// POST: Returns true if the entry was inserted
	Enqueue(ctx context.Context, e domain.Entry) (bool, error)

	// Save updates an entry after a delivery attempt or admin action.
	// PRE: entity has been validated
	// POST: Entity is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries still to be processed (pending or retrying).
	// PRE: limit > 0
	// POST: Returns up to limit entries ordered by created_at
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListByStatus returns entries in one status, newest first. An empty
	// status returns every entry.
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error)
}

var _ Store = (*SQLiteStore)(nil)

// SQLDB defines the database interface needed by the store.
type SQLDB interface {
	storage.SQLDB
}
