package appointment

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"clinic/internal/adapters/storage"
	domain "clinic/internal/domain/appointment"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// remindLayout is fixed-width UTC so remind_at compares correctly as text.
const remindLayout = "2006-01-02T15:04:05Z"

const selectColumns = `SELECT id, customer_id, treatment_id, location, date, start_time, end_time,
	duration_minutes, price_eur, status, notes, created_by, remind_at, reminder_sent, created_at, updated_at
	FROM appointment`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new AppointmentStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Appointment by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	entity, err := scanAppointment(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return domain.Appointment{}, fmt.Errorf("appointment not found: %w", err)
	}
	return entity, err
}

// Save persists an Appointment to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, a domain.Appointment) error {
	var remindAt interface{}
	if !a.RemindAt.IsZero() {
		remindAt = a.RemindAt.UTC().Format(remindLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointment (id, customer_id, treatment_id, location, date, start_time, end_time,
			duration_minutes, price_eur, status, notes, created_by, remind_at, reminder_sent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id=excluded.customer_id, treatment_id=excluded.treatment_id,
			location=excluded.location, date=excluded.date, start_time=excluded.start_time,
			end_time=excluded.end_time, duration_minutes=excluded.duration_minutes,
			price_eur=excluded.price_eur, status=excluded.status, notes=excluded.notes,
			remind_at=excluded.remind_at, reminder_sent=excluded.reminder_sent,
			updated_at=excluded.updated_at`,
		a.ID, a.CustomerID, a.TreatmentID, a.Location, a.Date, a.StartTime, a.EndTime,
		a.DurationMinutes, a.PriceEUR, a.Status, a.Notes, a.CreatedBy, remindAt, a.ReminderSent,
		a.CreatedAt.Format(timeLayout), a.UpdatedAt.Format(timeLayout))
	return err
}

// ListForDay returns every appointment of one location and day.
// PRE: date is YYYY-MM-DD, location is non-empty
// POST: Returns rows ordered by start_time, cancelled included
func (s *SQLiteStore) ListForDay(ctx context.Context, date, location string) ([]domain.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE date = ? AND location = ? ORDER BY start_time, id", date, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// List retrieves Appointments based on the filter, ordered by date and start time.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Appointment, error) {
	var b strings.Builder
	var args []interface{}

	b.WriteString(selectColumns + " WHERE 1=1")
	switch {
	case filter.Date != "":
		b.WriteString(" AND date = ?")
		args = append(args, filter.Date)
	default:
		if filter.From != "" {
			b.WriteString(" AND date >= ?")
			args = append(args, filter.From)
		}
		if filter.To != "" {
			b.WriteString(" AND date <= ?")
			args = append(args, filter.To)
		}
	}
	if filter.Location != "" {
		b.WriteString(" AND location = ?")
		args = append(args, filter.Location)
	}
	if filter.Status != "" {
		b.WriteString(" AND status = ?")
		args = append(args, filter.Status)
	}
	if filter.CustomerID != "" {
		b.WriteString(" AND customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.ExcludeCancelled {
		b.WriteString(" AND status != ?")
		args = append(args, domain.StatusCancelled)
	}
	if filter.Descending {
		b.WriteString(" ORDER BY date DESC, start_time DESC")
	} else {
		b.WriteString(" ORDER BY date, start_time")
	}
	if filter.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListDueReminders returns confirmed appointments whose reminder is due.
// PRE: limit > 0
// POST: Returns up to limit entries ordered by remind_at
func (s *SQLiteStore) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]domain.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status = ? AND reminder_sent = 0 AND remind_at IS NOT NULL AND remind_at <= ?
		ORDER BY remind_at LIMIT ?`,
		domain.StatusConfirmed, now.UTC().Format(remindLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// MarkReminderSent flags the reminder as queued so it is not sent twice.
func (s *SQLiteStore) MarkReminderSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE appointment SET reminder_sent = 1 WHERE id = ?", id)
	return err
}

// DailySchedule reads v_daily_schedule for one location and date range.
// PRE: From and To are YYYY-MM-DD, From <= To
// POST: Rows ordered by date, start_time
func (s *SQLiteStore) DailySchedule(ctx context.Context, filter ScheduleFilter) ([]ScheduleRow, error) {
	var b strings.Builder
	args := []interface{}{filter.From, filter.To}
	b.WriteString(`SELECT appointment_id, date, start_time, end_time, duration_minutes, location, status,
		price_eur, notes, customer_id, first_name, last_name, phone, email, treatment_id, treatment_name,
		treatment_category FROM v_daily_schedule WHERE date >= ? AND date <= ?`)
	if filter.Location != "" {
		b.WriteString(" AND location = ?")
		args = append(args, filter.Location)
	}
	b.WriteString(" ORDER BY date, start_time, appointment_id")

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduleRow
	for rows.Next() {
		var r ScheduleRow
		if err := rows.Scan(&r.AppointmentID, &r.Date, &r.StartTime, &r.EndTime, &r.DurationMinutes,
			&r.Location, &r.Status, &r.PriceEUR, &r.Notes, &r.CustomerID, &r.FirstName, &r.LastName,
			&r.Phone, &r.Email, &r.TreatmentID, &r.TreatmentName, &r.TreatmentCategory); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RevenueByDay reads v_revenue_stats for an inclusive date range.
// An empty location aggregates both sites per day.
func (s *SQLiteStore) RevenueByDay(ctx context.Context, from, to, location string) ([]RevenueDay, error) {
	var rows *sql.Rows
	var err error
	if location != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT date, location, appointments, completed, no_shows, revenue
			FROM v_revenue_stats WHERE date >= ? AND date <= ? AND location = ? ORDER BY date`,
			from, to, location)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT date, '', SUM(appointments), SUM(completed), SUM(no_shows), SUM(revenue)
			FROM v_revenue_stats WHERE date >= ? AND date <= ? GROUP BY date ORDER BY date`,
			from, to)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RevenueDay
	for rows.Next() {
		var d RevenueDay
		if err := rows.Scan(&d.Date, &d.Location, &d.Appointments, &d.Completed, &d.NoShows, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CustomerOverview reads v_customer_overview for one customer.
// PRE: customerID is non-empty
// POST: Returns the aggregate or an error if the customer does not exist
func (s *SQLiteStore) CustomerOverview(ctx context.Context, customerID string) (Overview, error) {
	var o Overview
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id, total_appointments, total_revenue, last_visit_date, first_booking_date
		FROM v_customer_overview WHERE customer_id = ?`, customerID).
		Scan(&o.CustomerID, &o.TotalAppointments, &o.TotalRevenue, &o.LastVisitDate, &o.FirstBookingDate)
	if err == sql.ErrNoRows {
		return Overview{}, fmt.Errorf("customer not found: %w", err)
	}
	return o, err
}

func scanAppointments(rows *sql.Rows) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// scanAppointment reads times verbatim; malformed clock values surface in the
// slot checker, not here.
func scanAppointment(scan func(dest ...interface{}) error) (domain.Appointment, error) {
	var a domain.Appointment
	var remindAt sql.NullString
	var createdAt, updatedAt string
	err := scan(&a.ID, &a.CustomerID, &a.TreatmentID, &a.Location, &a.Date, &a.StartTime, &a.EndTime,
		&a.DurationMinutes, &a.PriceEUR, &a.Status, &a.Notes, &a.CreatedBy, &remindAt, &a.ReminderSent,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.Appointment{}, err
	}
	if remindAt.Valid && remindAt.String != "" {
		a.RemindAt, _ = time.Parse(remindLayout, remindAt.String)
	}
	a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	a.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return a, nil
}
