package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clinic/internal/domain/appointment"
	"clinic/internal/domain/audit"
)

// AppointmentStoreForStatus defines the store interface needed by status changes.
type AppointmentStoreForStatus interface {
	GetByID(ctx context.Context, id string) (appointment.Appointment, error)
	Save(ctx context.Context, a appointment.Appointment) error
}

// UpdateAppointmentStatusInput carries input for a status change.
type UpdateAppointmentStatusInput struct {
	AppointmentID string
	Status        string
	Reason        string
	Actor         Actor
}

// UpdateAppointmentStatusDeps holds dependencies for status changes.
type UpdateAppointmentStatusDeps struct {
	AppointmentStore AppointmentStoreForStatus
	AuditStore       AuditRecorder
	Now              func() time.Time
}

// ExecuteUpdateAppointmentStatus moves a confirmed appointment to a final status.
// PRE: the appointment exists and is confirmed
// POST: Status is the requested one; a cancelled appointment frees its slot
func ExecuteUpdateAppointmentStatus(ctx context.Context, input UpdateAppointmentStatusInput, deps UpdateAppointmentStatusDeps) (appointment.Appointment, error) {
	appt, err := deps.AppointmentStore.GetByID(ctx, input.AppointmentID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	now := deps.Now()
	previous := appt.Status
	if err := appt.SetStatus(input.Status, now); err != nil {
		return appointment.Appointment{}, err
	}
	if input.Reason != "" {
		if appt.Notes != "" {
			appt.Notes += "\n"
		}
		appt.Notes += input.Status + ": " + input.Reason
	}
	if err := deps.AppointmentStore.Save(ctx, appt); err != nil {
		return appointment.Appointment{}, err
	}

	action := audit.ActionUpdate
	if appt.Status == appointment.StatusCancelled {
		action = audit.ActionCancel
	}
	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryBooking, action).
		WithLocation(appt.Location).
		WithResource("appointment", appt.ID).
		WithDescription(fmt.Sprintf("%s -> %s", previous, appt.Status)))
	slog.Info("booking_event", "event", "appointment_status_changed", "appointment_id", appt.ID,
		"from", previous, "to", appt.Status, "actor_id", input.Actor.ID)
	return appt, nil
}

// CancelAppointmentInput carries input for a cancellation.
type CancelAppointmentInput struct {
	AppointmentID string
	Reason        string
	Actor         Actor
}

// ExecuteCancelAppointment cancels a confirmed appointment.
// PRE: the appointment exists and is confirmed
// POST: Status is cancelled
func ExecuteCancelAppointment(ctx context.Context, input CancelAppointmentInput, deps UpdateAppointmentStatusDeps) (appointment.Appointment, error) {
	return ExecuteUpdateAppointmentStatus(ctx, UpdateAppointmentStatusInput{
		AppointmentID: input.AppointmentID,
		Status:        appointment.StatusCancelled,
		Reason:        input.Reason,
		Actor:         input.Actor,
	}, deps)
}
