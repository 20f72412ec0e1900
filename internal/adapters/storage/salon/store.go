package salon

import (
	"context"

	domain "clinic/internal/domain/salon"
)

// Store persists salon PIN access and the tablet sessions opened with it.
type Store interface {
	GetAccess(ctx context.Context, id string) (domain.Access, error)
	SaveAccess(ctx context.Context, a domain.Access) error
	// ListActiveAccess returns the enabled PIN entries of one location.
	ListActiveAccess(ctx context.Context, location string) ([]domain.Access, error)
	CountAccess(ctx context.Context) (int, error)

	GetSession(ctx context.Context, id string) (domain.Session, error)
	SaveSession(ctx context.Context, s domain.Session) error
}
