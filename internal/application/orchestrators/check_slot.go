package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clinic/internal/domain/appointment"
	"clinic/internal/domain/clock"
	"clinic/internal/domain/slot"
)

// DayLister loads one location's appointments for one day.
type DayLister interface {
	ListForDay(ctx context.Context, date, location string) ([]appointment.Appointment, error)
}

// Slot verdict reasons.
const (
	ReasonFree           = ""
	ReasonConflict       = "conflict"
	ReasonUnreadableData = "unreadable_data"
)

// CheckSlotInput carries input for the slot check.
type CheckSlotInput struct {
	Date            string
	Location        string
	StartTime       string
	DurationMinutes int
}

// CheckSlotDeps holds dependencies for CheckSlot.
type CheckSlotDeps struct {
	AppointmentStore DayLister
}

// CheckSlotResult is keyed by date and location so clients can drop stale answers.
type CheckSlotResult struct {
	Date        string   `json:"date"`
	Location    string   `json:"location"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Blocked     bool     `json:"blocked"`
	Reason      string   `json:"reason,omitempty"`
	ConflictIDs []string `json:"conflict_ids,omitempty"`
}

// loadDay fetches the day's appointments. A failed fetch is never an empty day.
// POST: Returns the appointments, or an error wrapping ErrConflictDataUnavailable
func loadDay(ctx context.Context, store DayLister, date, location string) ([]appointment.Appointment, error) {
	appts, err := store.ListForDay(ctx, date, location)
	if err != nil {
		slog.Error("conflict_data_unavailable", "date", date, "location", location, "error", err)
		return nil, fmt.Errorf("%w: %w", slot.ErrConflictDataUnavailable, err)
	}
	return appts, nil
}

// evaluateSlot runs the checker over a loaded day and maps the verdict.
// PRE: candidate has been validated
// POST: Blocked is true whenever any entry overlaps or cannot be read
func evaluateSlot(candidate slot.Candidate, appts []appointment.Appointment, date, location string) (bool, string, []string) {
	v, err := slot.Check(candidate, slot.FromAppointments(appts))
	ids := make([]string, 0, len(v.Conflicts))
	for _, i := range v.Conflicts {
		ids = append(ids, appts[i].ID)
	}
	switch {
	case err != nil && errors.Is(err, slot.ErrMalformedTime):
		unreadable := make([]string, 0, len(v.Unreadable))
		for _, i := range v.Unreadable {
			unreadable = append(unreadable, appts[i].ID)
		}
		slog.Warn("slot_unreadable_appointments", "date", date, "location", location, "appointment_ids", unreadable)
		return true, ReasonUnreadableData, ids
	case v.Blocked:
		return true, ReasonConflict, ids
	}
	return false, ReasonFree, nil
}

// ExecuteCheckSlot decides whether a candidate slot is free.
// PRE: Date is YYYY-MM-DD, Location is valid
// POST: Returns the verdict; an unreadable day is reported as blocked
// INVARIANT: a failed fetch returns ErrConflictDataUnavailable, never a free slot
func ExecuteCheckSlot(ctx context.Context, input CheckSlotInput, deps CheckSlotDeps) (CheckSlotResult, error) {
	if _, err := appointment.ParseDate(input.Date); err != nil {
		return CheckSlotResult{}, err
	}
	if !appointment.ValidLocation(input.Location) {
		return CheckSlotResult{}, appointment.ErrInvalidLocation
	}
	candidate := slot.Candidate{Start: input.StartTime, DurationMinutes: input.DurationMinutes}
	if err := candidate.Validate(); err != nil {
		return CheckSlotResult{}, err
	}
	start, _ := clock.Normalize(input.StartTime)
	end, err := clock.Add(start, input.DurationMinutes)
	if err != nil {
		return CheckSlotResult{}, err
	}

	appts, err := loadDay(ctx, deps.AppointmentStore, input.Date, input.Location)
	if err != nil {
		return CheckSlotResult{}, err
	}
	blocked, reason, ids := evaluateSlot(candidate, appts, input.Date, input.Location)
	return CheckSlotResult{
		Date:        input.Date,
		Location:    input.Location,
		StartTime:   start,
		EndTime:     end,
		Blocked:     blocked,
		Reason:      reason,
		ConflictIDs: ids,
	}, nil
}
