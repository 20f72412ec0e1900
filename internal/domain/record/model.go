package record

import (
	"errors"
	"strings"
	"time"
)

// Note types
const (
	NoteTreatment    = "treatment"
	NoteConsultation = "consultation"
	NoteFollowUp     = "follow_up"
	NoteGeneral      = "general"
	NoteConsentForm  = "consent_form"
)

// Sources describe how the note was captured.
const (
	SourceManual   = "manual"
	SourceTelegram = "telegram"
	SourceVoice    = "voice"
	SourceOCR      = "ocr"
)

// Domain errors
var (
	ErrEmptyCustomerID   = errors.New("customer ID is required")
	ErrInvalidNoteType   = errors.New("invalid note type")
	ErrInvalidSource     = errors.New("invalid record source")
	ErrEmptyContent      = errors.New("record needs notes or treatment details")
	ErrMissingFollowUp   = errors.New("follow-up date is required when follow-up is needed")
	ErrInvalidFollowUp   = errors.New("follow-up date must be YYYY-MM-DD")
	ErrTreatmentRequired = errors.New("treatment notes must reference a treatment")
)

// PatientRecord is one entry in a customer's treatment history.
type PatientRecord struct {
	ID               string
	CustomerID       string
	AppointmentID    string
	TreatmentID      string
	NoteType         string
	Notes            string
	TreatmentDetails map[string]string // e.g. product, units, areas
	Complications    string
	FollowUpNeeded   bool
	FollowUpDate     string
	Source           string
	CreatedBy        string
	CreatedAt        time.Time
}

// Validate checks if the PatientRecord has valid data.
// PRE: PatientRecord struct is populated
// POST: Returns nil if valid, error otherwise; Source defaults to manual
func (r *PatientRecord) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return ErrEmptyCustomerID
	}
	switch r.NoteType {
	case NoteTreatment, NoteConsultation, NoteFollowUp, NoteGeneral, NoteConsentForm:
	default:
		return ErrInvalidNoteType
	}
	if r.Source == "" {
		r.Source = SourceManual
	}
	switch r.Source {
	case SourceManual, SourceTelegram, SourceVoice, SourceOCR:
	default:
		return ErrInvalidSource
	}
	if r.NoteType == NoteTreatment && r.TreatmentID == "" {
		return ErrTreatmentRequired
	}
	if strings.TrimSpace(r.Notes) == "" && len(r.TreatmentDetails) == 0 {
		return ErrEmptyContent
	}
	if r.FollowUpNeeded {
		if r.FollowUpDate == "" {
			return ErrMissingFollowUp
		}
		if _, err := time.Parse("2006-01-02", r.FollowUpDate); err != nil {
			return ErrInvalidFollowUp
		}
	}
	return nil
}
