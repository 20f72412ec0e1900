package treatment

import (
	"context"

	domain "clinic/internal/domain/treatment"
)

// Store persists the treatment catalogue.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Treatment, error)
	GetBySlug(ctx context.Context, slug string) (domain.Treatment, error)
	Save(ctx context.Context, value domain.Treatment) error
	// List returns the catalogue ordered by sort_order, then name.
	List(ctx context.Context, activeOnly bool) ([]domain.Treatment, error)
	Count(ctx context.Context) (int, error)
}
