package salon

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultInactivityTimeout ends a salon session nobody has touched for this long.
const DefaultInactivityTimeout = 30 * time.Minute

// PINLength is the number of digits in a salon PIN.
const PINLength = 4

// Domain errors
var (
	ErrInvalidLocation = errors.New("salon access must belong to neumarkt or kw")
	ErrInvalidPIN      = errors.New("PIN must be exactly 4 digits")
	ErrWrongPIN        = errors.New("incorrect PIN")
	ErrAccessDisabled  = errors.New("salon access is disabled")
	ErrNotActive       = errors.New("salon session is not active")
	ErrExpired         = errors.New("salon session expired after inactivity")
	ErrEmptyAccessID   = errors.New("salon session must be tied to an access record")
)

// Access is the PIN that unlocks salon mode at one location.
type Access struct {
	ID       string
	Location string
	Name     string
	PINHash  string
	Active   bool
}

// Validate checks if the Access has valid data.
// PRE: Access struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Access) Validate() error {
	if a.Location != "neumarkt" && a.Location != "kw" {
		return ErrInvalidLocation
	}
	return nil
}

// SetPIN hashes a 4-digit PIN with bcrypt.
// PRE: pin is exactly 4 ASCII digits
// POST: PINHash is set
func (a *Access) SetPIN(pin string) error {
	if !ValidPIN(pin) {
		return ErrInvalidPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PINHash = string(hash)
	return nil
}

// CheckPIN verifies pin against the stored hash.
// INVARIANT: Access fields are not mutated
func (a *Access) CheckPIN(pin string) error {
	if !a.Active {
		return ErrAccessDisabled
	}
	if !ValidPIN(pin) || a.PINHash == "" {
		return ErrWrongPIN
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PINHash), []byte(pin)); err != nil {
		return ErrWrongPIN
	}
	return nil
}

// ValidPIN reports whether pin has the PIN shape.
func ValidPIN(pin string) bool {
	if len(pin) != PINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Session is an unlocked salon-mode tablet. It is scoped to a single
// location and ends on explicit lock or after a period of inactivity.
type Session struct {
	ID         string
	AccessID   string
	Location   string
	StartedAt  time.Time
	LastSeenAt time.Time
	EndedAt    time.Time
}

// Validate checks if the Session has valid data.
// PRE: Session struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Session) Validate() error {
	if s.AccessID == "" {
		return ErrEmptyAccessID
	}
	if s.Location != "neumarkt" && s.Location != "kw" {
		return ErrInvalidLocation
	}
	if s.StartedAt.IsZero() {
		return errors.New("started_at cannot be zero")
	}
	return nil
}

// IsActive returns true if the session has not been ended.
// INVARIANT: Session fields are not mutated
func (s *Session) IsActive() bool {
	return s.EndedAt.IsZero()
}

// Expired reports whether the session has been idle longer than timeout.
// INVARIANT: Session fields are not mutated
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	last := s.LastSeenAt
	if last.IsZero() {
		last = s.StartedAt
	}
	return now.Sub(last) > timeout
}

// Touch records activity and extends the inactivity window.
// PRE: Session is active and not expired
// POST: LastSeenAt is now; an expired session is ended instead
func (s *Session) Touch(now time.Time, timeout time.Duration) error {
	if !s.IsActive() {
		return ErrNotActive
	}
	if s.Expired(now, timeout) {
		s.EndedAt = now
		return ErrExpired
	}
	s.LastSeenAt = now
	return nil
}

// End terminates the session.
// PRE: Session is currently active
// POST: EndedAt is set to now
func (s *Session) End(now time.Time) error {
	if !s.IsActive() {
		return ErrNotActive
	}
	s.EndedAt = now
	return nil
}
