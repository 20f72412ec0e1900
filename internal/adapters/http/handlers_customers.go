package web

import (
	"net/http"
	"strconv"

	"clinic/internal/application/listutil"
	"clinic/internal/application/orchestrators"
	"clinic/internal/application/projections"
	"clinic/internal/domain/featureflag"
	"clinic/internal/domain/patientfile"
	"clinic/internal/domain/record"
)

// handleListCustomers handles GET /api/customers?q=&location=&page=&per_page=
func handleListCustomers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	params := listutil.ParseListParams(r.URL.Query(), []string{"location"})
	result, err := projections.QueryGetCustomerList(r.Context(), projections.GetCustomerListQuery{
		Search:   params.Search,
		Location: params.Filters["location"],
		Page:     params.Page,
		PerPage:  params.PerPage,
	}, projections.GetCustomerListDeps{CustomerStore: stores.CustomerStore})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": toCustomerRows(result.Customers),
		"page":      result.Page,
	})
}

type upsertCustomerRequest struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"first_name" validate:"required,max=100"`
	LastName    string   `json:"last_name" validate:"required,max=100"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Phone       string   `json:"phone" validate:"omitempty,max=40"`
	DateOfBirth string   `json:"date_of_birth" validate:"omitempty,date"`
	Location    string   `json:"location" validate:"omitempty,location"`
	Tags        []string `json:"tags" validate:"omitempty,dive,max=40"`
	Notes       string   `json:"notes"`
	SMSOptIn    *bool    `json:"sms_opt_in"`
	EmailOptIn  *bool    `json:"email_opt_in"`
}

// handleUpsertCustomer handles POST /api/customers
// POST: 201 for a new record, 200 when an existing customer matched
func handleUpsertCustomer(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req upsertCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := orchestrators.ExecuteUpsertCustomer(r.Context(), orchestrators.UpsertCustomerInput{
		ID:          req.ID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Location:    req.Location,
		Tags:        req.Tags,
		Notes:       req.Notes,
		SMSOptIn:    req.SMSOptIn,
		EmailOptIn:  req.EmailOptIn,
		Actor:       actorFor(r, sess),
	}, orchestrators.UpsertCustomerDeps{
		CustomerStore: stores.CustomerStore,
		AuditStore:    stores.AuditStore,
		GenerateID:    generateID,
		Now:           timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toCustomerDTO(result.Customer))
}

type mergeCustomersRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required,nefield=SourceID"`
}

// handleMergeCustomers handles POST /api/customers/merge
func handleMergeCustomers(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req mergeCustomersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	merged, err := orchestrators.ExecuteMergeCustomers(r.Context(), orchestrators.MergeCustomersInput{
		SourceID: req.SourceID,
		TargetID: req.TargetID,
		Actor:    actorFor(r, sess),
	}, orchestrators.MergeCustomersDeps{
		CustomerStore: stores.CustomerStore,
		AuditStore:    stores.AuditStore,
		Now:           timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(merged))
}

// handleGetCustomer handles GET /api/customers/{id}
func handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	result, err := projections.QueryGetCustomerOverview(r.Context(), projections.GetCustomerOverviewQuery{
		CustomerID: r.PathValue("id"),
	}, projections.GetCustomerOverviewDeps{
		CustomerStore:    stores.CustomerStore,
		AppointmentStore: stores.AppointmentStore,
		RecordStore:      stores.RecordStore,
		FileStore:        stores.FileStore,
		Timezone:         cfg.Location,
		Now:              timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	records := make([]recordDTO, 0, len(result.RecentRecords))
	for _, rec := range result.RecentRecords {
		records = append(records, toRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer":        toCustomerDTO(result.Customer),
		"stats":           result.Stats,
		"upcoming":        toAppointmentDTOs(result.Upcoming),
		"recent_records":  records,
		"open_follow_ups": result.OpenFollowUps,
		"files":           toFileDTOs(result.Files),
	})
}

// handleCustomerTimeline handles GET /api/customers/{id}/timeline?limit=
func handleCustomerTimeline(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := projections.QueryGetTreatmentHistory(r.Context(), projections.GetTreatmentHistoryQuery{
		CustomerID: r.PathValue("id"),
		Limit:      limit,
	}, projections.GetTreatmentHistoryDeps{
		CustomerStore:    stores.CustomerStore,
		AppointmentStore: stores.AppointmentStore,
		RecordStore:      stores.RecordStore,
		TreatmentStore:   stores.TreatmentStore,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type logTreatmentRequest struct {
	AppointmentID       string            `json:"appointment_id"`
	TreatmentID         string            `json:"treatment_id"`
	NoteType            string            `json:"note_type" validate:"required"`
	Notes               string            `json:"notes"`
	TreatmentDetails    map[string]string `json:"treatment_details"`
	Complications       string            `json:"complications"`
	FollowUpNeeded      bool              `json:"follow_up_needed"`
	FollowUpDate        string            `json:"follow_up_date" validate:"omitempty,date"`
	CompleteAppointment bool              `json:"complete_appointment"`
}

// handleLogTreatment handles POST /api/customers/{id}/records
func handleLogTreatment(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req logTreatmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	rec, err := orchestrators.ExecuteLogTreatment(r.Context(), orchestrators.LogTreatmentInput{
		CustomerID:          r.PathValue("id"),
		AppointmentID:       req.AppointmentID,
		TreatmentID:         req.TreatmentID,
		NoteType:            req.NoteType,
		Notes:               req.Notes,
		TreatmentDetails:    req.TreatmentDetails,
		Complications:       req.Complications,
		FollowUpNeeded:      req.FollowUpNeeded,
		FollowUpDate:        req.FollowUpDate,
		Source:              record.SourceManual,
		CompleteAppointment: req.CompleteAppointment,
		Actor:               actorFor(r, sess),
	}, orchestrators.LogTreatmentDeps{
		CustomerStore:    stores.CustomerStore,
		AppointmentStore: stores.AppointmentStore,
		RecordStore:      stores.RecordStore,
		AuditStore:       stores.AuditStore,
		GenerateID:       generateID,
		Now:              timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

func patientFileDeps() orchestrators.PatientFileDeps {
	return orchestrators.PatientFileDeps{
		CustomerStore: stores.CustomerStore,
		FileStore:     stores.FileStore,
		Objects:       services.Objects,
		AuditStore:    stores.AuditStore,
		URLExpiry:     cfg.PresignExpiry,
		GenerateID:    generateID,
		Now:           timeNow,
	}
}

// handleListFiles handles GET /api/customers/{id}/files
func handleListFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyPatientFiles, sess.Role) {
		return
	}
	files, err := stores.FileStore.ListByCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": toFileDTOs(files)})
}

// handleUploadFile handles multipart POST /api/customers/{id}/files
// Form fields: file (required), file_type, record_id.
func handleUploadFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyPatientFiles, sess.Role) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, patientfile.MaxSizeBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	fileType := r.FormValue("file_type")
	if fileType == "" {
		fileType = patientfile.TypeDocument
	}
	saved, err := orchestrators.ExecuteUploadPatientFile(r.Context(), orchestrators.UploadPatientFileInput{
		CustomerID: r.PathValue("id"),
		RecordID:   r.FormValue("record_id"),
		FileType:   fileType,
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		SizeBytes:  header.Size,
		Body:       file,
		Actor:      actorFor(r, sess),
	}, patientFileDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileDTO(saved))
}

// handleFileURL handles GET /api/files/{id}/url
func handleFileURL(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyPatientFiles, sess.Role) {
		return
	}
	url, err := orchestrators.ExecuteGetPatientFileURL(r.Context(), orchestrators.GetPatientFileURLInput{
		FileID: r.PathValue("id"),
		Actor:  actorFor(r, sess),
	}, patientFileDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, url)
}

// handleDeleteFile handles DELETE /api/files/{id}
func handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyPatientFiles, sess.Role) {
		return
	}
	err := orchestrators.ExecuteDeletePatientFile(r.Context(), orchestrators.DeletePatientFileInput{
		FileID: r.PathValue("id"),
		Actor:  actorFor(r, sess),
	}, patientFileDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
