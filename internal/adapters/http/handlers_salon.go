package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clinic/internal/adapters/http/middleware"
	appointmentStore "clinic/internal/adapters/storage/appointment"
	"clinic/internal/application/orchestrators"
	"clinic/internal/application/projections"
	"clinic/internal/domain/appointment"
	"clinic/internal/domain/customer"
	"clinic/internal/domain/featureflag"
)

// salonSearchLimit caps the customer picker on the tablet.
const salonSearchLimit = 10

func salonTouchDeps() orchestrators.TouchSalonDeps {
	return orchestrators.TouchSalonDeps{
		SalonStore: stores.SalonStore,
		AuditStore: stores.AuditStore,
		Timeout:    cfg.SalonTimeout,
		Now:        timeNow,
	}
}

// requireSalon verifies the bearer token and refreshes the salon session.
// The location always comes from the token, never from the request.
// POST: Returns the verified identity, or answers 401/403 and false
func requireSalon(w http.ResponseWriter, r *http.Request) (middleware.SalonIdentity, bool) {
	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || services.Tokens == nil {
		writeErrorMessage(w, http.StatusUnauthorized, "salon token required")
		return middleware.SalonIdentity{}, false
	}
	claims, err := services.Tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("auth_denied", "path", r.URL.Path, "reason", "invalid salon token", "error", err.Error())
		writeErrorMessage(w, http.StatusUnauthorized, ErrInvalidToken.Error())
		return middleware.SalonIdentity{}, false
	}
	if _, err := orchestrators.ExecuteTouchSalon(r.Context(), orchestrators.TouchSalonInput{
		SessionID: claims.SessionID,
		Location:  claims.Location,
	}, salonTouchDeps()); err != nil {
		switch statusFor(err) {
		case http.StatusNotFound, http.StatusUnauthorized:
			writeErrorMessage(w, http.StatusUnauthorized, "salon session ended, unlock again")
		default:
			writeError(w, err)
		}
		return middleware.SalonIdentity{}, false
	}
	if !requireFeature(w, r, featureflag.KeySalon, featureflag.RoleSalon) {
		return middleware.SalonIdentity{}, false
	}
	return middleware.SalonIdentity{SessionID: claims.SessionID, Location: claims.Location}, true
}

type salonUnlockRequest struct {
	Location string `json:"location" validate:"required,location"`
	PIN      string `json:"pin" validate:"required,len=4,numeric"`
}

// handleSalonUnlock handles POST /api/salon/unlock
// POST: Returns a bearer token scoped to the PIN's location
func handleSalonUnlock(w http.ResponseWriter, r *http.Request) {
	var req salonUnlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if services.Tokens == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "salon mode not configured")
		return
	}
	if !requireFeature(w, r, featureflag.KeySalon, featureflag.RoleSalon) {
		return
	}
	result, err := orchestrators.ExecuteUnlockSalon(r.Context(), orchestrators.UnlockSalonInput{
		Location:  req.Location,
		PIN:       req.PIN,
		IPAddress: clientIP(r),
	}, orchestrators.UnlockSalonDeps{
		SalonStore: stores.SalonStore,
		Tokens:     services.Tokens,
		AuditStore: stores.AuditStore,
		GenerateID: generateID,
		Now:        timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":         result.Token,
		"expires_at":    result.ExpiresAt,
		"session_id":    result.Session.ID,
		"location":      result.Session.Location,
		"location_name": appointment.LocationName(result.Session.Location),
	})
}

// handleSalonLock handles POST /api/salon/lock
func handleSalonLock(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSalon(w, r)
	if !ok {
		return
	}
	if err := orchestrators.ExecuteLockSalon(r.Context(), orchestrators.LockSalonInput{
		SessionID: id.SessionID,
		Location:  id.Location,
		IPAddress: clientIP(r),
	}, salonTouchDeps()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSalonDates handles GET /api/salon/dates
func handleSalonDates(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSalon(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, projections.QueryGetBookingDates(projections.GetBookingDatesDeps{
		Timezone: cfg.Location,
		Now:      timeNow,
	}))
}

// handleSalonTreatments handles GET /api/salon/treatments
func handleSalonTreatments(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSalon(w, r)
	if !ok {
		return
	}
	result, err := projections.QueryGetBookableTreatments(r.Context(), projections.GetBookableTreatmentsQuery{
		Location: id.Location,
	}, projections.GetBookableTreatmentsDeps{TreatmentStore: stores.TreatmentStore})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location":   result.Location,
		"treatments": toTreatmentDTOs(result.Treatments),
	})
}

// handleSalonSlots handles GET /api/salon/slots?date=&treatment_id=
// The response echoes date and location so the tablet can drop stale answers.
func handleSalonSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSalon(w, r)
	if !ok {
		return
	}
	daySlots(w, r, id.Location)
}

type salonSearchRequest struct {
	Query string `json:"query" validate:"required,max=100"`
}

// handleSalonCustomerSearch handles POST /api/salon/customers/search
func handleSalonCustomerSearch(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSalon(w, r); !ok {
		return
	}
	var req salonSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := customer.ValidateQuery(req.Query); err != nil {
		writeError(w, err)
		return
	}
	results, err := stores.CustomerStore.Search(r.Context(), req.Query, salonSearchLimit)
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]salonCustomerDTO, 0, len(results))
	for _, c := range results {
		out = append(out, salonCustomerDTO{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Phone: c.Phone})
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": out})
}

type salonCustomerRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required_without=Email,max=40"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// handleSalonCreateCustomer handles POST /api/salon/customers
// An existing customer with the same email or phone is reused.
func handleSalonCreateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSalon(w, r)
	if !ok {
		return
	}
	var req salonCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	result, err := orchestrators.ExecuteUpsertCustomer(r.Context(), orchestrators.UpsertCustomerInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Location:  id.Location,
		Source:    customer.SourceSalon,
		Actor:     salonActor(r, id),
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
	c := result.Customer
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, salonCustomerDTO{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Phone: c.Phone})
}

type salonBookRequest struct {
	CustomerID  string `json:"customer_id" validate:"required"`
	TreatmentID string `json:"treatment_id" validate:"required"`
	Date        string `json:"date" validate:"required,date"`
	StartTime   string `json:"start_time" validate:"required,clock"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// handleSalonBook handles POST /api/salon/appointments
// POST: 201 on success, 409 when the slot was taken meanwhile,
// 503 when conflicts could not be checked
func handleSalonBook(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSalon(w, r)
	if !ok {
		return
	}
	var req salonBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	appt, err := orchestrators.ExecuteBookAppointment(r.Context(), orchestrators.BookAppointmentInput{
		CustomerID:   req.CustomerID,
		TreatmentID:  req.TreatmentID,
		Location:     id.Location,
		Date:         req.Date,
		StartTime:    req.StartTime,
		Notes:        req.Notes,
		MaxDaysAhead: projections.BookingWindowDays,
		Actor:        salonActor(r, id),
	}, bookingDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentDTO(appt))
}

// salonCalendarRow is a schedule row without customer contact details.
type salonCalendarRow struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CustomerName  string `json:"customer_name"`
	TreatmentName string `json:"treatment_name"`
}

type salonCalendarDay struct {
	Date         string             `json:"date"`
	Location     string             `json:"location"`
	Appointments []salonCalendarRow `json:"appointments"`
}

func toSalonCalendarDay(day projections.DaySchedule) salonCalendarDay {
	out := salonCalendarDay{Date: day.Date, Location: day.Location, Appointments: []salonCalendarRow{}}
	for _, row := range day.Appointments {
		if row.Status == appointment.StatusCancelled {
			continue
		}
		out.Appointments = append(out.Appointments, salonRow(row))
	}
	return out
}

func salonRow(row appointmentStore.ScheduleRow) salonCalendarRow {
	return salonCalendarRow{
		AppointmentID: row.AppointmentID,
		StartTime:     row.StartTime,
		EndTime:       row.EndTime,
		Status:        row.Status,
		CustomerName:  strings.TrimSpace(row.FirstName + " " + row.LastName),
		TreatmentName: row.TreatmentName,
	}
}

// handleSalonCalendar handles GET /api/salon/calendar
// POST: Returns today and tomorrow for the tablet's location
func handleSalonCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := requireSalon(w, r)
	if !ok {
		return
	}
	today := timeNow().In(cfg.Location)
	days := make([]salonCalendarDay, 0, 2)
	for _, d := range []time.Time{today, today.AddDate(0, 0, 1)} {
		day, err := projections.QueryGetDailySchedule(r.Context(), projections.GetScheduleQuery{
			Date:     d.Format(appointment.DateLayout),
			Location: id.Location,
		}, projections.GetScheduleDeps{ScheduleStore: stores.AppointmentStore})
		if err != nil {
			writeError(w, err)
			return
		}
		days = append(days, toSalonCalendarDay(day))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location":      id.Location,
		"location_name": appointment.LocationName(id.Location),
		"days":          days,
	})
}
