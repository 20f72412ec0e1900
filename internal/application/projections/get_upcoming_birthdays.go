package projections

import (
	"context"
	"sort"
	"time"

	customerStore "clinic/internal/adapters/storage/customer"
	"clinic/internal/domain/appointment"
)

// DefaultBirthdayDays is the look-ahead used when the query sets none.
const DefaultBirthdayDays = 7

// GetUpcomingBirthdaysQuery carries query parameters.
type GetUpcomingBirthdaysQuery struct {
	Days int
}

// Birthday is a customer whose birthday falls within the look-ahead.
type Birthday struct {
	CustomerID  string `json:"customer_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email,omitempty"`
	DateOfBirth string `json:"date_of_birth"`
	Next        string `json:"next"`
	DaysUntil   int    `json:"days_until"`
	TurnsAge    int    `json:"turns_age"`
}

// GetUpcomingBirthdaysResult carries the query result.
type GetUpcomingBirthdaysResult struct {
	Days      int        `json:"days"`
	Birthdays []Birthday `json:"birthdays"`
}

// GetUpcomingBirthdaysDeps holds dependencies for GetUpcomingBirthdays.
type GetUpcomingBirthdaysDeps struct {
	CustomerStore CustomerLister
	Timezone      *time.Location
	Now           func() time.Time
}

// QueryGetUpcomingBirthdays lists customers with a birthday from today
// through today+Days.
// POST: Birthdays ordered by next occurrence, then last name
func QueryGetUpcomingBirthdays(ctx context.Context, query GetUpcomingBirthdaysQuery, deps GetUpcomingBirthdaysDeps) (GetUpcomingBirthdaysResult, error) {
	days := query.Days
	if days <= 0 {
		days = DefaultBirthdayDays
	}
	tz := deps.Timezone
	if tz == nil {
		tz = time.UTC
	}
	now := deps.Now().In(tz)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)

	customers, err := deps.CustomerStore.List(ctx, customerStore.ListFilter{WithBirthday: true})
	if err != nil {
		return GetUpcomingBirthdaysResult{}, err
	}
	out := []Birthday{}
	for _, c := range customers {
		next, ok := c.BirthdayIn(from, days)
		if !ok {
			continue
		}
		dob, _ := appointment.ParseDate(c.DateOfBirth)
		out = append(out, Birthday{
			CustomerID:  c.ID,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			Email:       c.Email,
			DateOfBirth: c.DateOfBirth,
			Next:        next.Format(appointment.DateLayout),
			DaysUntil:   int(next.Sub(from).Hours()+12) / 24,
			TurnsAge:    next.Year() - dob.Year(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Next != out[j].Next {
			return out[i].Next < out[j].Next
		}
		return out[i].LastName < out[j].LastName
	})
	return GetUpcomingBirthdaysResult{Days: days, Birthdays: out}, nil
}
