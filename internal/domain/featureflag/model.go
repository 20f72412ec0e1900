package featureflag

import (
	"errors"
	"time"

	"clinic/internal/domain/account"
)

// RoleSalon is the pseudo-role of an unlocked salon tablet.
const RoleSalon = "salon"

// FeatureFlag switches one product area on or off per role.
//
// Key is stable and referenced by code. Booleans are stored per role
// rather than in a map so the table and JSON stay flat.
type FeatureFlag struct {
	Key         string
	Description string

	EnabledAdmin    bool
	EnabledStaff    bool
	EnabledCustomer bool
	EnabledSalon    bool

	UpdatedAt time.Time
}

var (
	ErrMissingKey = errors.New("feature flag key is required")
	ErrUnknownKey = errors.New("unknown feature flag")
	ErrDisabled   = errors.New("feature is disabled")
)

// Validate checks required fields for a FeatureFlag.
// PRE: FeatureFlag struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (f *FeatureFlag) Validate() error {
	if f.Key == "" {
		return ErrMissingKey
	}
	if _, ok := Default(f.Key); !ok {
		return ErrUnknownKey
	}
	return nil
}

// EnabledForRole reports whether the feature is on for role.
// INVARIANT: f is not mutated
func (f FeatureFlag) EnabledForRole(role string) bool {
	switch role {
	case account.RoleAdmin:
		return f.EnabledAdmin
	case account.RoleStaff:
		return f.EnabledStaff
	case account.RoleCustomer:
		return f.EnabledCustomer
	case RoleSalon:
		return f.EnabledSalon
	default:
		return false
	}
}
