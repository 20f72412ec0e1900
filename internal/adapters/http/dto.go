package web

import (
	"time"

	"clinic/internal/domain/account"
	"clinic/internal/domain/appointment"
	"clinic/internal/domain/customer"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/featureflag"
	"clinic/internal/domain/outbox"
	"clinic/internal/domain/patientfile"
	"clinic/internal/domain/record"
	"clinic/internal/domain/treatment"
)

// Response DTOs. Domain types carry no JSON tags; these fix the wire names.

type accountDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountDTO(a account.Account) accountDTO {
	return accountDTO{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role, CreatedAt: a.CreatedAt}
}

type customerDTO struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Location    string    `json:"location,omitempty"`
	Tags        []string  `json:"tags"`
	Notes       string    `json:"notes,omitempty"`
	SMSOptIn    bool      `json:"sms_opt_in"`
	EmailOptIn  bool      `json:"email_opt_in"`
	Source      string    `json:"source"`
	HasPortal   bool      `json:"has_portal"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCustomerDTO(c customer.Customer) customerDTO {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return customerDTO{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		DateOfBirth: c.DateOfBirth,
		Location:    c.Location,
		Tags:        tags,
		Notes:       c.Notes,
		SMSOptIn:    c.SMSOptIn,
		EmailOptIn:  c.EmailOptIn,
		Source:      c.Source,
		HasPortal:   c.PortalAccountID != "",
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type customerRowDTO struct {
	customerDTO
	TotalAppointments   int     `json:"total_appointments"`
	LastAppointmentDate string  `json:"last_appointment_date,omitempty"`
	NextAppointmentDate string  `json:"next_appointment_date,omitempty"`
	TotalRevenue        float64 `json:"total_revenue"`
}

func toCustomerRows(rows []customer.SearchResult) []customerRowDTO {
	out := make([]customerRowDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, customerRowDTO{
			customerDTO:         toCustomerDTO(r.Customer),
			TotalAppointments:   r.TotalAppointments,
			LastAppointmentDate: r.LastAppointmentDate,
			NextAppointmentDate: r.NextAppointmentDate,
			TotalRevenue:        r.TotalRevenue,
		})
	}
	return out
}

// salonCustomerDTO exposes only what the front desk needs to pick a customer.
type salonCustomerDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

type treatmentDTO struct {
	ID              string   `json:"id"`
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	PriceEUR        float64  `json:"price_eur"`
	DurationMinutes int      `json:"duration_minutes"`
	AvailableAt     []string `json:"available_at"`
	Active          bool     `json:"active"`
}

func toTreatmentDTOs(ts []treatment.Treatment) []treatmentDTO {
	out := make([]treatmentDTO, 0, len(ts))
	for _, t := range ts {
		at := t.AvailableAt
		if at == nil {
			at = []string{}
		}
		out = append(out, treatmentDTO{
			ID:              t.ID,
			Slug:            t.Slug,
			Name:            t.Name,
			Category:        t.Category,
			PriceEUR:        t.PriceEUR,
			DurationMinutes: t.DurationMinutes,
			AvailableAt:     at,
			Active:          t.Active,
		})
	}
	return out
}

type appointmentDTO struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customer_id"`
	TreatmentID     string    `json:"treatment_id"`
	Location        string    `json:"location"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceEUR        float64   `json:"price_eur"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAppointmentDTO(a appointment.Appointment) appointmentDTO {
	return appointmentDTO{
		ID:              a.ID,
		CustomerID:      a.CustomerID,
		TreatmentID:     a.TreatmentID,
		Location:        a.Location,
		Date:            a.Date,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		DurationMinutes: a.DurationMinutes,
		PriceEUR:        a.PriceEUR,
		Status:          a.Status,
		Notes:           a.Notes,
		CreatedBy:       a.CreatedBy,
		CreatedAt:       a.CreatedAt,
	}
}

func toAppointmentDTOs(as []appointment.Appointment) []appointmentDTO {
	out := make([]appointmentDTO, 0, len(as))
	for _, a := range as {
		out = append(out, toAppointmentDTO(a))
	}
	return out
}

type recordDTO struct {
	ID               string            `json:"id"`
	CustomerID       string            `json:"customer_id"`
	AppointmentID    string            `json:"appointment_id,omitempty"`
	TreatmentID      string            `json:"treatment_id,omitempty"`
	NoteType         string            `json:"note_type"`
	Notes            string            `json:"notes,omitempty"`
	TreatmentDetails map[string]string `json:"treatment_details,omitempty"`
	Complications    string            `json:"complications,omitempty"`
	FollowUpNeeded   bool              `json:"follow_up_needed"`
	FollowUpDate     string            `json:"follow_up_date,omitempty"`
	Source           string            `json:"source"`
	CreatedBy        string            `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
}

func toRecordDTO(r record.PatientRecord) recordDTO {
	return recordDTO{
		ID:               r.ID,
		CustomerID:       r.CustomerID,
		AppointmentID:    r.AppointmentID,
		TreatmentID:      r.TreatmentID,
		NoteType:         r.NoteType,
		Notes:            r.Notes,
		TreatmentDetails: r.TreatmentDetails,
		Complications:    r.Complications,
		FollowUpNeeded:   r.FollowUpNeeded,
		FollowUpDate:     r.FollowUpDate,
		Source:           r.Source,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt,
	}
}

type fileDTO struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	RecordID   string    `json:"record_id,omitempty"`
	FileType   string    `json:"file_type"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func toFileDTO(f patientfile.File) fileDTO {
	return fileDTO{
		ID:         f.ID,
		CustomerID: f.CustomerID,
		RecordID:   f.RecordID,
		FileType:   f.FileType,
		FileName:   f.FileName,
		MimeType:   f.MimeType,
		SizeBytes:  f.SizeBytes,
		UploadedBy: f.UploadedBy,
		CreatedAt:  f.CreatedAt,
	}
}

func toFileDTOs(fs []patientfile.File) []fileDTO {
	out := make([]fileDTO, 0, len(fs))
	for _, f := range fs {
		out = append(out, toFileDTO(f))
	}
	return out
}

type templateDTO struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Subject      string   `json:"subject"`
	TemplateType string   `json:"template_type"`
	Variables    []string `json:"variables"`
	Active       bool     `json:"active"`
}

func toTemplateDTOs(ts []emailDomain.Template) []templateDTO {
	out := make([]templateDTO, 0, len(ts))
	for _, t := range ts {
		vars := t.Variables
		if vars == nil {
			vars = []string{}
		}
		out = append(out, templateDTO{
			ID:           t.ID,
			Slug:         t.Slug,
			Name:         t.Name,
			Subject:      t.Subject,
			TemplateType: t.TemplateType,
			Variables:    vars,
			Active:       t.Active,
		})
	}
	return out
}

type campaignDTO struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Subject         string     `json:"subject"`
	BodyMarkdown    string     `json:"body_markdown,omitempty"`
	BodyHTML        string     `json:"body_html"`
	TemplateID      string     `json:"template_id,omitempty"`
	SegmentLocation string     `json:"segment_location,omitempty"`
	EmailOptInOnly  bool       `json:"email_opt_in_only"`
	Status          string     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	TotalRecipients int        `json:"total_recipients"`
	TotalSent       int        `json:"total_sent"`
	TotalFailed     int        `json:"total_failed"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toCampaignDTO(c emailDomain.Campaign) campaignDTO {
	return campaignDTO{
		ID:              c.ID,
		Name:            c.Name,
		Subject:         c.Subject,
		BodyMarkdown:    c.BodyMarkdown,
		BodyHTML:        c.BodyHTML,
		TemplateID:      c.TemplateID,
		SegmentLocation: c.Segment.Location,
		EmailOptInOnly:  c.Segment.EmailOptInOnly,
		Status:          c.Status,
		ScheduledAt:     optionalTime(c.ScheduledAt),
		SentAt:          optionalTime(c.SentAt),
		TotalRecipients: c.TotalRecipients,
		TotalSent:       c.TotalSent,
		TotalFailed:     c.TotalFailed,
		CreatedBy:       c.CreatedBy,
		CreatedAt:       c.CreatedAt,
	}
}

type outboxEntryDTO struct {
	ID            string     `json:"id"`
	ActionType    string     `json:"action_type"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	LastAttempted *time.Time `json:"last_attempted_at,omitempty"`
	NextAttempt   *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExternalID    string     `json:"external_id,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// toOutboxEntryDTO omits the payload, which can carry customer data.
func toOutboxEntryDTO(e outbox.Entry) outboxEntryDTO {
	return outboxEntryDTO{
		ID:            e.ID,
		ActionType:    e.ActionType,
		Status:        e.Status,
		Attempts:      e.Attempts,
		MaxAttempts:   e.MaxAttempts,
		LastAttempted: optionalTime(e.LastAttemptedAt),
		NextAttempt:   optionalTime(e.NextAttemptAt),
		CreatedAt:     e.CreatedAt,
		ExternalID:    e.ExternalID,
		ErrorMessage:  e.ErrorMessage,
	}
}

type featureFlagDTO struct {
	Key             string    `json:"key"`
	Description     string    `json:"description"`
	EnabledAdmin    bool      `json:"enabled_admin"`
	EnabledStaff    bool      `json:"enabled_staff"`
	EnabledCustomer bool      `json:"enabled_customer"`
	EnabledSalon    bool      `json:"enabled_salon"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toFeatureFlagDTO(f featureflag.FeatureFlag) featureFlagDTO {
	return featureFlagDTO{
		Key:             f.Key,
		Description:     f.Description,
		EnabledAdmin:    f.EnabledAdmin,
		EnabledStaff:    f.EnabledStaff,
		EnabledCustomer: f.EnabledCustomer,
		EnabledSalon:    f.EnabledSalon,
		UpdatedAt:       f.UpdatedAt,
	}
}
