package patientfile

import (
	"context"

	domain "clinic/internal/domain/patientfile"
)

// Store persists patient file metadata. The bytes live in object storage.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.File, error)
	Save(ctx context.Context, value domain.File) error
	Delete(ctx context.Context, id string) error
	// ListByCustomer returns a customer's files, newest first.
	ListByCustomer(ctx context.Context, customerID string) ([]domain.File, error)
}
