package appointment

import (
	"context"
	"time"

	domain "clinic/internal/domain/appointment"
)

// Store persists appointments and serves the schedule and revenue read models.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Appointment, error)
	Save(ctx context.Context, value domain.Appointment) error

	// ListForDay returns every appointment of one location and day, cancelled
	// ones included, with times exactly as stored.
	// PRE: date is YYYY-MM-DD, location is non-empty
	// POST: Returns rows ordered by start_time; an error means the day is unknown
	ListForDay(ctx context.Context, date, location string) ([]domain.Appointment, error)

	List(ctx context.Context, filter ListFilter) ([]domain.Appointment, error)

	// ListDueReminders returns confirmed appointments whose reminder is due
	// and not yet sent.
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]domain.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error

	DailySchedule(ctx context.Context, filter ScheduleFilter) ([]ScheduleRow, error)
	RevenueByDay(ctx context.Context, from, to, location string) ([]RevenueDay, error)
	CustomerOverview(ctx context.Context, customerID string) (Overview, error)
}

// ListFilter carries filtering parameters for List operations.
// Date takes precedence over From/To.
type ListFilter struct {
	Date             string
	From             string
	To               string
	Location         string
	Status           string
	CustomerID       string
	ExcludeCancelled bool
	Descending       bool
	Limit            int
}

// ScheduleFilter selects rows of v_daily_schedule for one location over an
// inclusive date range.
type ScheduleFilter struct {
	From     string
	To       string
	Location string
}

// ScheduleRow is one appointment joined with its customer and treatment.
type ScheduleRow struct {
	AppointmentID     string  `json:"appointment_id"`
	Date              string  `json:"date"`
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time"`
	DurationMinutes   int     `json:"duration_minutes"`
	Location          string  `json:"location"`
	Status            string  `json:"status"`
	PriceEUR          float64 `json:"price_eur"`
	Notes             string  `json:"notes"`
	CustomerID        string  `json:"customer_id"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	Phone             string  `json:"phone"`
	Email             string  `json:"email"`
	TreatmentID       string  `json:"treatment_id"`
	TreatmentName     string  `json:"treatment_name"`
	TreatmentCategory string  `json:"treatment_category"`
}

// RevenueDay aggregates one day at one location.
type RevenueDay struct {
	Date         string  `json:"date"`
	Location     string  `json:"location"`
	Appointments int     `json:"appointments"`
	Completed    int     `json:"completed"`
	NoShows      int     `json:"no_shows"`
	Revenue      float64 `json:"revenue"`
}

// Overview aggregates a customer's booking history.
type Overview struct {
	CustomerID        string  `json:"customer_id"`
	TotalAppointments int     `json:"total_appointments"`
	TotalRevenue      float64 `json:"total_revenue"`
	LastVisitDate     string  `json:"last_visit_date"`
	FirstBookingDate  string  `json:"first_booking_date"`
}
