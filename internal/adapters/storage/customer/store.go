package customer

import (
	"context"

	domain "clinic/internal/domain/customer"
)

// Store persists Customer state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (domain.Customer, error)
	GetByPhone(ctx context.Context, normalizedPhone string) (domain.Customer, error)
	GetByPortalAccount(ctx context.Context, accountID string) (domain.Customer, error)
	Save(ctx context.Context, value domain.Customer) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Customer, error)
	Count(ctx context.Context, filter ListFilter) (int, error)

	// Search matches name, email and phone and ranks by similarity.
	// PRE: len(q) >= domain.MinSearchLength
	// POST: Returns up to limit results, best match first
	Search(ctx context.Context, q string, limit int) ([]domain.SearchResult, error)

	// Reassign moves every appointment, record and file of sourceID to
	// targetID, saves target and deletes source in one transaction.
	// PRE: both customers exist, target already holds the merged fields
	// POST: sourceID no longer exists
	Reassign(ctx context.Context, sourceID string, target domain.Customer) error
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Location     string
	EmailOptIn   bool // only customers who accepted marketing email
	HasEmail     bool
	WithBirthday bool
	Limit        int
	Offset       int
}
