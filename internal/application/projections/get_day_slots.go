package projections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clinic/internal/domain/appointment"
	"clinic/internal/domain/clock"
	"clinic/internal/domain/slot"
)

// Salon booking grid.
const (
	FirstSlot         = "09:00"
	LastSlot          = "19:00"
	SlotStepMinutes   = 30
	BookingWindowDays = 14
)

// Slot reasons. A free slot has no reason.
const (
	SlotConflict       = "conflict"
	SlotUnreadableData = "unreadable_data"
	SlotPast           = "past"
	SlotPastMidnight   = "past_midnight"
)

var ErrOutsideBookingWindow = errors.New("date is outside the booking window")

// GetDaySlotsQuery carries query parameters.
type GetDaySlotsQuery struct {
	Date            string
	Location        string
	DurationMinutes int
}

// SlotStatus is one start time of the booking grid.
type SlotStatus struct {
	Time    string `json:"time"`
	EndTime string `json:"end_time,omitempty"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// GetDaySlotsResult is keyed by date and location so clients can drop stale answers.
type GetDaySlotsResult struct {
	Date            string       `json:"date"`
	Location        string       `json:"location"`
	DurationMinutes int          `json:"duration_minutes"`
	Slots           []SlotStatus `json:"slots"`
}

// GetDaySlotsDeps holds dependencies for GetDaySlots.
type GetDaySlotsDeps struct {
	AppointmentStore DayLister
	Timezone         *time.Location
	Now              func() time.Time
}

// GridTimes returns the start times offered for booking.
func GridTimes() []string {
	first, _ := clock.Parse(FirstSlot)
	last, _ := clock.Parse(LastSlot)
	out := make([]string, 0, (last-first)/SlotStepMinutes+1)
	for m := first; m <= last; m += SlotStepMinutes {
		out = append(out, clock.Format(m))
	}
	return out
}

// QueryGetDaySlots marks every grid time of a day as free or blocked for a
// treatment of the given duration.
// PRE: Date within today..today+13, Location valid, DurationMinutes > 0
// POST: Returns one SlotStatus per grid time in order
// INVARIANT: a failed fetch returns ErrConflictDataUnavailable, never a free grid
func QueryGetDaySlots(ctx context.Context, query GetDaySlotsQuery, deps GetDaySlotsDeps) (GetDaySlotsResult, error) {
	tz := deps.Timezone
	if tz == nil {
		tz = time.UTC
	}
	day, err := time.ParseInLocation(appointment.DateLayout, query.Date, tz)
	if err != nil {
		return GetDaySlotsResult{}, appointment.ErrInvalidDate
	}
	if !appointment.ValidLocation(query.Location) {
		return GetDaySlotsResult{}, appointment.ErrInvalidLocation
	}
	if query.DurationMinutes <= 0 {
		return GetDaySlotsResult{}, slot.ErrNonPositiveDuration
	}
	now := deps.Now().In(tz)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)
	if day.Before(today) || !day.Before(today.AddDate(0, 0, BookingWindowDays)) {
		return GetDaySlotsResult{}, ErrOutsideBookingWindow
	}

	appts, err := deps.AppointmentStore.ListForDay(ctx, query.Date, query.Location)
	if err != nil {
		slog.Error("conflict_data_unavailable", "date", query.Date, "location", query.Location, "error", err)
		return GetDaySlotsResult{}, fmt.Errorf("%w: %w", slot.ErrConflictDataUnavailable, err)
	}
	booked := slot.FromAppointments(appts)

	result := GetDaySlotsResult{Date: query.Date, Location: query.Location, DurationMinutes: query.DurationMinutes}
	unreadable := false
	for _, t := range GridTimes() {
		s := SlotStatus{Time: t}
		end, err := clock.Add(t, query.DurationMinutes)
		if err != nil {
			s.Blocked, s.Reason = true, SlotPastMidnight
			result.Slots = append(result.Slots, s)
			continue
		}
		s.EndTime = end
		startMin, _ := clock.Parse(t)
		v, err := slot.Check(slot.Candidate{Start: t, DurationMinutes: query.DurationMinutes}, booked)
		switch {
		case day.Equal(today) && day.Add(time.Duration(startMin)*time.Minute).Before(now):
			s.Blocked, s.Reason = true, SlotPast
		case err != nil:
			s.Blocked, s.Reason = true, SlotUnreadableData
			unreadable = true
		case v.Blocked:
			s.Blocked, s.Reason = true, SlotConflict
		}
		result.Slots = append(result.Slots, s)
	}
	if unreadable {
		slog.Warn("slot_unreadable_appointments", "date", query.Date, "location", query.Location)
	}
	return result, nil
}
