package treatment

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrEmptySlug       = errors.New("treatment slug is required")
	ErrEmptyName       = errors.New("treatment name is required")
	ErrInvalidDuration = errors.New("treatment duration must be positive")
	ErrNegativePrice   = errors.New("treatment price cannot be negative")
	ErrInvalidLocation = errors.New("available_at contains an unknown location")
	ErrInactive        = errors.New("treatment is not active")
	ErrNotOffered      = errors.New("treatment is not offered at this location")
)

// Treatment is a bookable service from the clinic catalogue.
type Treatment struct {
	ID              string
	Slug            string
	Name            string
	Category        string
	PriceEUR        float64
	DurationMinutes int
	AvailableAt     []string // empty means every location
	Active          bool
	SortOrder       int
	Notes           string
}

// Validate checks if the Treatment has valid data.
// PRE: Treatment struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Treatment) Validate() error {
	if strings.TrimSpace(t.Slug) == "" {
		return ErrEmptySlug
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if t.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if t.PriceEUR < 0 {
		return ErrNegativePrice
	}
	for _, loc := range t.AvailableAt {
		if loc != "neumarkt" && loc != "kw" {
			return ErrInvalidLocation
		}
	}
	return nil
}

// OfferedAt reports whether the treatment can be booked at loc.
// INVARIANT: an empty AvailableAt list means every location
func (t *Treatment) OfferedAt(loc string) bool {
	if len(t.AvailableAt) == 0 {
		return true
	}
	for _, l := range t.AvailableAt {
		if l == loc {
			return true
		}
	}
	return false
}

// CheckBookable returns why the treatment cannot be booked at loc, if anything.
func (t *Treatment) CheckBookable(loc string) error {
	if !t.Active {
		return ErrInactive
	}
	if !t.OfferedAt(loc) {
		return ErrNotOffered
	}
	return nil
}
