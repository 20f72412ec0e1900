// Package slot decides whether a candidate appointment slot is free.
//
// The checker is a pure function over the appointments supplied for one day
// at one location. It never fetches data and never guesses: when the day's
// appointments could not be loaded, callers report ErrConflictDataUnavailable
// instead of calling Check with an empty list.
package slot

import (
	"errors"
	"fmt"

	"clinic/internal/domain/appointment"
	"clinic/internal/domain/clock"
)

// Domain errors
var (
	ErrMalformedTime           = errors.New("malformed time")
	ErrNonPositiveDuration     = errors.New("duration must be greater than zero")
	ErrConflictDataUnavailable = errors.New("conflict data unavailable")
)

// Candidate is a proposed slot: a start time and a duration.
type Candidate struct {
	Start           string // HH:MM or HH:MM:SS
	DurationMinutes int
}

// Booked is the read-only view of an existing appointment the checker needs.
// End is trusted as stored and never recomputed from a treatment duration.
type Booked struct {
	Start  string
	End    string
	Status string
}

// Verdict is the outcome of a check.
type Verdict struct {
	Blocked    bool
	Conflicts  []int // indexes of entries that overlap the candidate
	Unreadable []int // indexes of non-cancelled entries with malformed times
}

// Validate rejects malformed candidates before any evaluation.
// PRE: none
// POST: Returns nil if Start parses and DurationMinutes > 0
func (c Candidate) Validate() error {
	if _, err := clock.Parse(c.Start); err != nil {
		return fmt.Errorf("candidate start: %w: %w", ErrMalformedTime, err)
	}
	if c.DurationMinutes <= 0 {
		return ErrNonPositiveDuration
	}
	return nil
}

// Interval returns the candidate as half-open minutes [start, end).
// PRE: Validate() returned nil
func (c Candidate) Interval() (int, int) {
	start, _ := clock.Parse(c.Start)
	return start, start + c.DurationMinutes
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
// Touching endpoints do not overlap and empty intervals overlap nothing.
func Overlaps(s1, e1, s2, e2 int) bool {
	if s1 >= e1 || s2 >= e2 {
		return false
	}
	return s1 < e2 && e1 > s2
}

// Check evaluates candidate against the day's booked entries.
//
// Cancelled entries are skipped entirely, as are zero-length entries. A
// non-cancelled entry whose times do not parse, or that ends before it
// starts, cannot be evaluated: if another entry overlaps, the verdict is
// blocked and no error is returned; otherwise the verdict is still blocked and
// the error wraps ErrMalformedTime, so an unknown conflict never admits a slot.
//
// PRE: none
// POST: Returns a Verdict, or a validation error for the candidate
// INVARIANT: booked is not modified
func Check(candidate Candidate, booked []Booked) (Verdict, error) {
	if err := candidate.Validate(); err != nil {
		return Verdict{}, err
	}
	candStart, candEnd := candidate.Interval()

	var v Verdict
	for i, b := range booked {
		if b.Status == appointment.StatusCancelled {
			continue
		}
		start, errStart := clock.Parse(b.Start)
		end, errEnd := clock.Parse(b.End)
		if errStart != nil || errEnd != nil || end < start {
			v.Unreadable = append(v.Unreadable, i)
			continue
		}
		if Overlaps(candStart, candEnd, start, end) {
			v.Conflicts = append(v.Conflicts, i)
		}
	}

	if len(v.Conflicts) > 0 {
		v.Blocked = true
		return v, nil
	}
	if len(v.Unreadable) > 0 {
		v.Blocked = true
		return v, fmt.Errorf("%d appointment(s) with unreadable times: %w", len(v.Unreadable), ErrMalformedTime)
	}
	return v, nil
}

// Blocked is shorthand for Check when only the decision matters.
func Blocked(candidate Candidate, booked []Booked) (bool, error) {
	v, err := Check(candidate, booked)
	return v.Blocked, err
}

// FromAppointments projects stored appointments into checker input.
func FromAppointments(appts []appointment.Appointment) []Booked {
	out := make([]Booked, 0, len(appts))
	for _, a := range appts {
		out = append(out, Booked{Start: a.StartTime, End: a.EndTime, Status: a.Status})
	}
	return out
}
