package outbox

import (
	"context"
	"time"

	domain "clinic/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or an error if not found
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry to the database.
	// PRE: entity has been validated
	// POST: Entity is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListDue returns pending or retrying entries whose next attempt is due.
	// PRE: limit > 0
	// POST: Returns up to limit entries ordered by created_at
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// ListFailed returns entries that have exhausted their attempts.
	// PRE: limit > 0
	// POST: Returns up to limit failed entries, most recent attempt first
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)

	// List returns entries filtered by status and action type, newest first.
	List(ctx context.Context, filter ListFilter) ([]domain.Entry, error)

	// CountByStatus returns the number of entries per status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// Delete removes an outbox entry.
	// PRE: id is non-empty and entry is in terminal state
	Delete(ctx context.Context, id string) error
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Status     string
	ActionType string
	Limit      int
}
