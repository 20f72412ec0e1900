package projections

import (
	"context"
	"errors"
	"time"

	appointmentStore "clinic/internal/adapters/storage/appointment"
	"clinic/internal/domain/appointment"
)

// DefaultRevenueDays is the range used when no dates are given.
const DefaultRevenueDays = 30

var ErrInvalidRange = errors.New("from must not be after to")

// GetRevenueStatsQuery carries query parameters. Empty dates select the last
// DefaultRevenueDays days up to today.
type GetRevenueStatsQuery struct {
	From     string
	To       string
	Location string
}

// GetRevenueStatsResult carries per-day rows and totals.
type GetRevenueStatsResult struct {
	From         string                        `json:"from"`
	To           string                        `json:"to"`
	Location     string                        `json:"location"`
	Days         []appointmentStore.RevenueDay `json:"days"`
	Appointments int                           `json:"appointments"`
	Completed    int                           `json:"completed"`
	NoShows      int                           `json:"no_shows"`
	Revenue      float64                       `json:"revenue"`
	NoShowRate   float64                       `json:"no_show_rate"`
}

// GetRevenueStatsDeps holds dependencies for GetRevenueStats.
type GetRevenueStatsDeps struct {
	RevenueStore RevenueReader
	Timezone     *time.Location
	Now          func() time.Time
}

// QueryGetRevenueStats aggregates completed revenue and no-shows over a date range.
// PRE: From <= To when both are set
// POST: Totals equal the sum of Days
func QueryGetRevenueStats(ctx context.Context, query GetRevenueStatsQuery, deps GetRevenueStatsDeps) (GetRevenueStatsResult, error) {
	tz := deps.Timezone
	if tz == nil {
		tz = time.UTC
	}
	to, from := query.To, query.From
	if to == "" {
		to = deps.Now().In(tz).Format(appointment.DateLayout)
	}
	toDay, err := appointment.ParseDate(to)
	if err != nil {
		return GetRevenueStatsResult{}, err
	}
	if from == "" {
		from = toDay.AddDate(0, 0, -(DefaultRevenueDays - 1)).Format(appointment.DateLayout)
	}
	if _, err := appointment.ParseDate(from); err != nil {
		return GetRevenueStatsResult{}, err
	}
	if from > to {
		return GetRevenueStatsResult{}, ErrInvalidRange
	}
	if query.Location != "" && !appointment.ValidLocation(query.Location) {
		return GetRevenueStatsResult{}, appointment.ErrInvalidLocation
	}

	days, err := deps.RevenueStore.RevenueByDay(ctx, from, to, query.Location)
	if err != nil {
		return GetRevenueStatsResult{}, err
	}
	res := GetRevenueStatsResult{From: from, To: to, Location: query.Location, Days: days}
	if res.Days == nil {
		res.Days = []appointmentStore.RevenueDay{}
	}
	for _, d := range days {
		res.Appointments += d.Appointments
		res.Completed += d.Completed
		res.NoShows += d.NoShows
		res.Revenue += d.Revenue
	}
	if res.Appointments > 0 {
		res.NoShowRate = float64(res.NoShows) / float64(res.Appointments)
	}
	return res, nil
}
