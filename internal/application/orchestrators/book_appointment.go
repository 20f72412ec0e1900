package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clinic/internal/adapters/lock"
	"clinic/internal/domain/appointment"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/clock"
	"clinic/internal/domain/customer"
	"clinic/internal/domain/slot"
	"clinic/internal/domain/treatment"
)

// AppointmentStoreForBooking defines the store interface needed by BookAppointment.
type AppointmentStoreForBooking interface {
	ListForDay(ctx context.Context, date, location string) ([]appointment.Appointment, error)
	Save(ctx context.Context, a appointment.Appointment) error
}

// TreatmentGetter loads a treatment from the catalogue.
type TreatmentGetter interface {
	GetByID(ctx context.Context, id string) (treatment.Treatment, error)
}

// CustomerGetter loads a customer.
type CustomerGetter interface {
	GetByID(ctx context.Context, id string) (customer.Customer, error)
}

var (
	ErrSlotTaken   = errors.New("slot is already taken")
	ErrBookingBusy = errors.New("another booking for this day is in progress, try again")
	ErrDateInPast  = errors.New("appointment date is in the past")
	ErrTooFarAhead = errors.New("appointment date is outside the booking window")
)

// BookAppointmentInput carries input for booking an appointment.
type BookAppointmentInput struct {
	CustomerID  string
	TreatmentID string
	Location    string
	Date        string
	StartTime   string
	Notes       string
	// PriceEUR overrides the catalogue price when set.
	PriceEUR *float64
	// MaxDaysAhead limits how far ahead the date may be; 0 means no limit.
	MaxDaysAhead int
	Actor        Actor
}

// BookAppointmentDeps holds dependencies for BookAppointment.
type BookAppointmentDeps struct {
	AppointmentStore AppointmentStoreForBooking
	TreatmentStore   TreatmentGetter
	CustomerStore    CustomerGetter
	Locker           lock.Locker
	LockTTL          time.Duration
	LockWait         time.Duration
	AuditStore       AuditRecorder
	// Confirmation is optional; nil skips the confirmation email.
	Confirmation *ConfirmationDeps
	Timezone     *time.Location
	GenerateID   func() string
	Now          func() time.Time
}

// ConfirmationDeps queues the booking confirmation email.
type ConfirmationDeps struct {
	TemplateStore TemplateLookup
	OutboxStore   OutboxWriter
}

// ExecuteBookAppointment books a treatment slot.
// The day's appointments are re-read under the day lock, so two concurrent
// bookings of overlapping slots cannot both succeed.
// PRE: customer and treatment exist; treatment is active and offered at Location
// POST: A confirmed appointment is saved with its reminder scheduled
// INVARIANT: a slot whose conflicts cannot be read is never booked
func ExecuteBookAppointment(ctx context.Context, input BookAppointmentInput, deps BookAppointmentDeps) (appointment.Appointment, error) {
	tz := deps.Timezone
	if tz == nil {
		tz = time.UTC
	}
	now := deps.Now()

	day, err := time.ParseInLocation(appointment.DateLayout, input.Date, tz)
	if err != nil {
		return appointment.Appointment{}, appointment.ErrInvalidDate
	}
	if !appointment.ValidLocation(input.Location) {
		return appointment.Appointment{}, appointment.ErrInvalidLocation
	}
	today := startOfDay(now.In(tz))
	if day.Before(today) {
		return appointment.Appointment{}, ErrDateInPast
	}
	if input.MaxDaysAhead > 0 && !day.Before(today.AddDate(0, 0, input.MaxDaysAhead)) {
		return appointment.Appointment{}, ErrTooFarAhead
	}

	cust, err := deps.CustomerStore.GetByID(ctx, input.CustomerID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	tr, err := deps.TreatmentStore.GetByID(ctx, input.TreatmentID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if err := tr.CheckBookable(input.Location); err != nil {
		return appointment.Appointment{}, err
	}

	candidate := slot.Candidate{Start: input.StartTime, DurationMinutes: tr.DurationMinutes}
	if err := candidate.Validate(); err != nil {
		return appointment.Appointment{}, err
	}
	start, _ := clock.Normalize(input.StartTime)
	end, err := clock.Add(start, tr.DurationMinutes)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if day.Equal(today) {
		startMin, _ := clock.Parse(start)
		if day.Add(time.Duration(startMin) * time.Minute).Before(now) {
			return appointment.Appointment{}, ErrDateInPast
		}
	}

	price := tr.PriceEUR
	if input.PriceEUR != nil {
		price = *input.PriceEUR
	}
	appt := appointment.Appointment{
		ID:              deps.GenerateID(),
		CustomerID:      cust.ID,
		TreatmentID:     tr.ID,
		Location:        input.Location,
		Date:            input.Date,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: tr.DurationMinutes,
		PriceEUR:        price,
		Status:          appointment.StatusConfirmed,
		Notes:           strings.TrimSpace(input.Notes),
		CreatedBy:       input.Actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := appt.Validate(); err != nil {
		return appointment.Appointment{}, err
	}
	if err := appt.ScheduleReminder(tz); err != nil {
		return appointment.Appointment{}, err
	}

	key := lock.BookingKey(input.Location, input.Date)
	token, err := lock.Acquire(ctx, deps.Locker, key, deps.LockTTL, deps.LockWait)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return appointment.Appointment{}, ErrBookingBusy
		}
		return appointment.Appointment{}, fmt.Errorf("acquire booking lock: %w", err)
	}
	defer func() {
		if err := deps.Locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			slog.Warn("booking_unlock_failed", "key", key, "error", err)
		}
	}()

	appts, err := loadDay(ctx, deps.AppointmentStore, input.Date, input.Location)
	if err != nil {
		return appointment.Appointment{}, err
	}
	blocked, reason, ids := evaluateSlot(candidate, appts, input.Date, input.Location)
	if blocked {
		slog.Info("booking_event", "event", "booking_rejected", "date", input.Date, "location", input.Location,
			"start", start, "reason", reason, "conflicts", ids)
		if reason == ReasonUnreadableData {
			return appointment.Appointment{}, fmt.Errorf("%w: %w", ErrSlotTaken, slot.ErrMalformedTime)
		}
		return appointment.Appointment{}, ErrSlotTaken
	}

	if err := deps.AppointmentStore.Save(ctx, appt); err != nil {
		return appointment.Appointment{}, err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryBooking, audit.ActionCreate).
		WithLocation(appt.Location).
		WithResource("appointment", appt.ID).
		WithDescription(fmt.Sprintf("%s %s %s-%s for %s", tr.Name, appt.Date, appt.StartTime, appt.EndTime, cust.FullName())))
	slog.Info("booking_event", "event", "appointment_booked", "appointment_id", appt.ID, "location", appt.Location,
		"date", appt.Date, "start", appt.StartTime, "end", appt.EndTime, "created_by", appt.CreatedBy)

	if deps.Confirmation != nil && cust.Email != "" {
		queueConfirmation(ctx, deps, cust, tr, appt, now)
	}
	return appt, nil
}

// queueConfirmation is best effort: the booking stands if the email cannot be queued.
func queueConfirmation(ctx context.Context, deps BookAppointmentDeps, cust customer.Customer, tr treatment.Treatment, appt appointment.Appointment, now time.Time) {
	_, err := ExecuteSendTemplateEmail(ctx, SendTemplateEmailInput{
		TemplateSlug: TemplateBookingConfirmation,
		To:           cust.Email,
		CustomerID:   cust.ID,
		Variables:    appointmentVars(cust, tr, appt),
		Actor:        Actor{ID: appt.CreatedBy, Role: "system"},
	}, SendTemplateEmailDeps{
		TemplateStore: deps.Confirmation.TemplateStore,
		OutboxStore:   deps.Confirmation.OutboxStore,
		GenerateID:    deps.GenerateID,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		slog.Warn("booking_confirmation_not_queued", "appointment_id", appt.ID, "error", err)
	}
}

// appointmentVars are the template variables every appointment email can use.
func appointmentVars(cust customer.Customer, tr treatment.Treatment, appt appointment.Appointment) map[string]string {
	return map[string]string{
		"first_name": cust.FirstName,
		"last_name":  cust.LastName,
		"treatment":  tr.Name,
		"date":       appt.Date,
		"start_time": appt.StartTime,
		"end_time":   appt.EndTime,
		"location":   appointment.LocationName(appt.Location),
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
