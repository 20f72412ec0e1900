package appointment

import (
	"errors"
	"strings"
	"time"

	"clinic/internal/domain/clock"
)

// Status values
const (
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Locations
const (
	LocationNeumarkt = "neumarkt"
	LocationKW       = "kw"
)

// Locations lists every physical site appointments are partitioned by.
var Locations = []string{LocationNeumarkt, LocationKW}

// DateLayout is the calendar-day format used on the wire and in storage.
const DateLayout = "2006-01-02"

// ReminderLead is how long before the appointment start the reminder is due.
const ReminderLead = 24 * time.Hour

// Domain errors
var (
	ErrEmptyCustomerID   = errors.New("customer ID cannot be empty")
	ErrEmptyTreatmentID  = errors.New("treatment ID cannot be empty")
	ErrInvalidLocation   = errors.New("location must be neumarkt or kw")
	ErrInvalidDate       = errors.New("date must be YYYY-MM-DD")
	ErrInvalidDuration   = errors.New("duration must be positive")
	ErrEndMismatch       = errors.New("end time must equal start time plus duration")
	ErrInvalidStatus     = errors.New("invalid appointment status")
	ErrInvalidTransition = errors.New("appointment status cannot change from its current state")
	ErrNegativePrice     = errors.New("price cannot be negative")
)

// Appointment is a booked treatment slot at one location on one day.
type Appointment struct {
	ID              string
	CustomerID      string
	TreatmentID     string
	Location        string
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM
	EndTime         string // HH:MM
	DurationMinutes int
	PriceEUR        float64
	Status          string
	Notes           string
	CreatedBy       string // account ID or "salon:<location>"
	RemindAt        time.Time
	ReminderSent    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LocationName is the display name of a location code.
func LocationName(loc string) string {
	switch loc {
	case LocationNeumarkt:
		return "Neumarkt"
	case LocationKW:
		return "KW"
	}
	return loc
}

// ValidLocation reports whether loc is a known location.
func ValidLocation(loc string) bool {
	for _, l := range Locations {
		if l == loc {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// Validate checks if the Appointment has valid data.
// The stored end time must be consistent with start + duration on write;
// readers trust end_time as stored.
// PRE: Appointment struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Appointment) Validate() error {
	if strings.TrimSpace(a.CustomerID) == "" {
		return ErrEmptyCustomerID
	}
	if strings.TrimSpace(a.TreatmentID) == "" {
		return ErrEmptyTreatmentID
	}
	if !ValidLocation(a.Location) {
		return ErrInvalidLocation
	}
	if _, err := ParseDate(a.Date); err != nil {
		return err
	}
	if a.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if a.PriceEUR < 0 {
		return ErrNegativePrice
	}
	if !ValidStatus(a.Status) {
		return ErrInvalidStatus
	}
	end, err := clock.Add(a.StartTime, a.DurationMinutes)
	if err != nil {
		return err
	}
	stored, err := clock.Normalize(a.EndTime)
	if err != nil {
		return err
	}
	if stored != end {
		return ErrEndMismatch
	}
	return nil
}

// StartsAt returns the appointment start as an instant in loc.
// PRE: Date and StartTime are valid
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, a.Date, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	m, err := clock.Parse(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(m) * time.Minute), nil
}

// ScheduleReminder sets RemindAt to ReminderLead before the start.
// PRE: Date and StartTime are valid
// POST: RemindAt is set, ReminderSent is false
func (a *Appointment) ScheduleReminder(loc *time.Location) error {
	start, err := a.StartsAt(loc)
	if err != nil {
		return err
	}
	a.RemindAt = start.Add(-ReminderLead)
	a.ReminderSent = false
	return nil
}

// IsActive reports whether the appointment still occupies its slot.
// INVARIANT: only cancelled appointments release their slot
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled
}

// Cancel releases the slot.
// PRE: Status is confirmed
// POST: Status is cancelled
func (a *Appointment) Cancel(now time.Time) error {
	return a.transition(StatusCancelled, now)
}

// Complete marks the treatment as performed.
// PRE: Status is confirmed
// POST: Status is completed
func (a *Appointment) Complete(now time.Time) error {
	return a.transition(StatusCompleted, now)
}

// MarkNoShow records that the customer did not attend.
// PRE: Status is confirmed
// POST: Status is no_show
func (a *Appointment) MarkNoShow(now time.Time) error {
	return a.transition(StatusNoShow, now)
}

// SetStatus applies a named transition.
// PRE: target is a valid status
// POST: Status is target, or an error is returned and nothing changes
func (a *Appointment) SetStatus(target string, now time.Time) error {
	if !ValidStatus(target) {
		return ErrInvalidStatus
	}
	return a.transition(target, now)
}

func (a *Appointment) transition(target string, now time.Time) error {
	if a.Status != StatusConfirmed || target == StatusConfirmed {
		return ErrInvalidTransition
	}
	a.Status = target
	a.UpdatedAt = now
	return nil
}
