package record

import (
	"context"

	domain "clinic/internal/domain/record"
)

// Store persists patient records.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.PatientRecord, error)
	Save(ctx context.Context, value domain.PatientRecord) error
	// ListByCustomer returns a customer's records, newest first.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.PatientRecord, error)
	// ListFollowUps returns records with an open follow-up due on or before date.
	ListFollowUps(ctx context.Context, date string) ([]domain.PatientRecord, error)
}
