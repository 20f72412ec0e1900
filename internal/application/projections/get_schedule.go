package projections

import (
	"context"
	"time"

	appointmentStore "clinic/internal/adapters/storage/appointment"
	"clinic/internal/domain/appointment"
)

// GetScheduleQuery carries query parameters for the day and week views.
// An empty Location shows both sites.
type GetScheduleQuery struct {
	Date     string
	Location string
}

// DaySchedule is one calendar day of the schedule.
type DaySchedule struct {
	Date            string                         `json:"date"`
	Location        string                         `json:"location"`
	Appointments    []appointmentStore.ScheduleRow `json:"appointments"`
	Active          int                            `json:"active"`
	ExpectedRevenue float64                        `json:"expected_revenue"`
}

// GetWeekScheduleResult carries the seven days starting on Monday.
type GetWeekScheduleResult struct {
	WeekStart string        `json:"week_start"`
	Location  string        `json:"location"`
	Days      []DaySchedule `json:"days"`
}

// GetScheduleDeps holds dependencies for the schedule queries.
type GetScheduleDeps struct {
	ScheduleStore ScheduleReader
}

func validScheduleQuery(query GetScheduleQuery) (time.Time, error) {
	day, err := appointment.ParseDate(query.Date)
	if err != nil {
		return time.Time{}, err
	}
	if query.Location != "" && !appointment.ValidLocation(query.Location) {
		return time.Time{}, appointment.ErrInvalidLocation
	}
	return day, nil
}

// QueryGetDailySchedule returns one day's appointments with customer and treatment.
// PRE: Date is YYYY-MM-DD
// POST: Rows ordered by start time; cancelled rows included but not counted
func QueryGetDailySchedule(ctx context.Context, query GetScheduleQuery, deps GetScheduleDeps) (DaySchedule, error) {
	if _, err := validScheduleQuery(query); err != nil {
		return DaySchedule{}, err
	}
	rows, err := deps.ScheduleStore.DailySchedule(ctx, appointmentStore.ScheduleFilter{
		From: query.Date, To: query.Date, Location: query.Location,
	})
	if err != nil {
		return DaySchedule{}, err
	}
	return summarizeDay(query.Date, query.Location, rows), nil
}

// QueryGetWeekSchedule returns the Monday-to-Sunday week containing Date.
// PRE: Date is YYYY-MM-DD
// POST: Days has seven entries, Monday first
func QueryGetWeekSchedule(ctx context.Context, query GetScheduleQuery, deps GetScheduleDeps) (GetWeekScheduleResult, error) {
	day, err := validScheduleQuery(query)
	if err != nil {
		return GetWeekScheduleResult{}, err
	}
	monday := WeekStart(day)
	sunday := monday.AddDate(0, 0, 6)
	rows, err := deps.ScheduleStore.DailySchedule(ctx, appointmentStore.ScheduleFilter{
		From:     monday.Format(appointment.DateLayout),
		To:       sunday.Format(appointment.DateLayout),
		Location: query.Location,
	})
	if err != nil {
		return GetWeekScheduleResult{}, err
	}
	byDate := make(map[string][]appointmentStore.ScheduleRow)
	for _, r := range rows {
		byDate[r.Date] = append(byDate[r.Date], r)
	}
	result := GetWeekScheduleResult{WeekStart: monday.Format(appointment.DateLayout), Location: query.Location}
	for i := range 7 {
		d := monday.AddDate(0, 0, i).Format(appointment.DateLayout)
		result.Days = append(result.Days, summarizeDay(d, query.Location, byDate[d]))
	}
	return result, nil
}

// WeekStart returns the Monday on or before day.
func WeekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func summarizeDay(date, location string, rows []appointmentStore.ScheduleRow) DaySchedule {
	ds := DaySchedule{Date: date, Location: location, Appointments: rows}
	if ds.Appointments == nil {
		ds.Appointments = []appointmentStore.ScheduleRow{}
	}
	for _, r := range rows {
		if r.Status == appointment.StatusCancelled {
			continue
		}
		ds.Active++
		if r.Status != appointment.StatusNoShow {
			ds.ExpectedRevenue += r.PriceEUR
		}
	}
	return ds
}
