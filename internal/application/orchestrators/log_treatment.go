package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clinic/internal/domain/appointment"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/record"
)

// RecordWriter persists patient records.
type RecordWriter interface {
	Save(ctx context.Context, r record.PatientRecord) error
}

// LogTreatmentInput carries a new patient record.
type LogTreatmentInput struct {
	CustomerID       string
	AppointmentID    string
	TreatmentID      string
	NoteType         string
	Notes            string
	TreatmentDetails map[string]string
	Complications    string
	FollowUpNeeded   bool
	FollowUpDate     string
	Source           string
	// CompleteAppointment marks the linked appointment completed.
	CompleteAppointment bool
	Actor               Actor
}

// LogTreatmentDeps holds dependencies for LogTreatment.
type LogTreatmentDeps struct {
	CustomerStore    CustomerGetter
	AppointmentStore AppointmentStoreForStatus
	RecordStore      RecordWriter
	AuditStore       AuditRecorder
	GenerateID       func() string
	Now              func() time.Time
}

var ErrAppointmentMismatch = errors.New("appointment belongs to another customer")

// ExecuteLogTreatment adds an entry to a customer's treatment history.
// PRE: the customer exists; a linked appointment belongs to the customer
// POST: the record is saved; the appointment is completed when requested
func ExecuteLogTreatment(ctx context.Context, input LogTreatmentInput, deps LogTreatmentDeps) (record.PatientRecord, error) {
	if _, err := deps.CustomerStore.GetByID(ctx, input.CustomerID); err != nil {
		return record.PatientRecord{}, err
	}
	now := deps.Now()
	rec := record.PatientRecord{
		ID:               deps.GenerateID(),
		CustomerID:       input.CustomerID,
		AppointmentID:    input.AppointmentID,
		TreatmentID:      input.TreatmentID,
		NoteType:         input.NoteType,
		Notes:            input.Notes,
		TreatmentDetails: input.TreatmentDetails,
		Complications:    input.Complications,
		FollowUpNeeded:   input.FollowUpNeeded,
		FollowUpDate:     input.FollowUpDate,
		Source:           input.Source,
		CreatedBy:        input.Actor.ID,
		CreatedAt:        now,
	}

	var appt appointment.Appointment
	if input.AppointmentID != "" {
		var err error
		appt, err = deps.AppointmentStore.GetByID(ctx, input.AppointmentID)
		if err != nil {
			return record.PatientRecord{}, err
		}
		if appt.CustomerID != input.CustomerID {
			return record.PatientRecord{}, ErrAppointmentMismatch
		}
		if rec.TreatmentID == "" {
			rec.TreatmentID = appt.TreatmentID
		}
	}
	if err := rec.Validate(); err != nil {
		return record.PatientRecord{}, err
	}

	if input.CompleteAppointment && input.AppointmentID != "" && appt.Status == appointment.StatusConfirmed {
		if err := appt.Complete(now); err != nil {
			return record.PatientRecord{}, err
		}
		if err := deps.AppointmentStore.Save(ctx, appt); err != nil {
			return record.PatientRecord{}, err
		}
	}
	if err := deps.RecordStore.Save(ctx, rec); err != nil {
		return record.PatientRecord{}, err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryPatientData, audit.ActionCreate).
		WithResource("patient_record", rec.ID).
		WithDescription(rec.NoteType + " for customer " + rec.CustomerID))
	slog.Info("record_event", "event", "treatment_logged", "record_id", rec.ID, "customer_id", rec.CustomerID,
		"note_type", rec.NoteType, "follow_up", rec.FollowUpNeeded)
	return rec, nil
}
