package projections

import (
	"time"

	"clinic/internal/domain/appointment"
)

var weekdayShort = [...]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"}

// BookingDate is one selectable day of the salon booking window.
type BookingDate struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Weekday string `json:"weekday"`
	Today   bool   `json:"today"`
}

// GetBookingDatesResult carries the query result.
type GetBookingDatesResult struct {
	Dates []BookingDate `json:"dates"`
}

// GetBookingDatesDeps holds dependencies for GetBookingDates.
type GetBookingDatesDeps struct {
	Timezone *time.Location
	Now      func() time.Time
}

// QueryGetBookingDates lists today and the following days of the booking window.
// POST: Returns BookingWindowDays consecutive dates starting today
func QueryGetBookingDates(deps GetBookingDatesDeps) GetBookingDatesResult {
	tz := deps.Timezone
	if tz == nil {
		tz = time.UTC
	}
	now := deps.Now().In(tz)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)
	dates := make([]BookingDate, 0, BookingWindowDays)
	for i := range BookingWindowDays {
		d := today.AddDate(0, 0, i)
		dates = append(dates, BookingDate{
			Date:    d.Format(appointment.DateLayout),
			Label:   d.Format("02.01."),
			Weekday: weekdayShort[d.Weekday()],
			Today:   i == 0,
		})
	}
	return GetBookingDatesResult{Dates: dates}
}
