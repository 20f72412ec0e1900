package web

import (
	"net/http"
	"strconv"

	appointmentStore "clinic/internal/adapters/storage/appointment"
	"clinic/internal/application/orchestrators"
	"clinic/internal/application/projections"
)

// handleListTreatments handles GET /api/treatments?location=&all=1
// Staff see the whole catalogue with all=1; otherwise only bookable treatments.
func handleListTreatments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	q := r.URL.Query()
	if q.Get("all") == "1" {
		ts, err := stores.TreatmentStore.List(r.Context(), false)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"treatments": toTreatmentDTOs(ts)})
		return
	}
	result, err := projections.QueryGetBookableTreatments(r.Context(), projections.GetBookableTreatmentsQuery{
		Location: q.Get("location"),
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

type appointmentListQuery struct {
	Date       string `json:"date" validate:"omitempty,date"`
	From       string `json:"from" validate:"omitempty,date"`
	To         string `json:"to" validate:"omitempty,date"`
	Location   string `json:"location" validate:"omitempty,location"`
	Status     string `json:"status" validate:"omitempty,oneof=confirmed completed cancelled no_show"`
	CustomerID string `json:"customer_id"`
	Limit      int    `json:"limit" validate:"gte=0,lte=500"`
}

// handleListAppointments handles GET /api/appointments
func handleListAppointments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	query := appointmentListQuery{
		Date:       q.Get("date"),
		From:       q.Get("from"),
		To:         q.Get("to"),
		Location:   q.Get("location"),
		Status:     q.Get("status"),
		CustomerID: q.Get("customer_id"),
		Limit:      limit,
	}
	if err := validate.Struct(query); err != nil {
		writeDecodeError(w, err)
		return
	}
	if query.Limit == 0 {
		query.Limit = 200
	}
	appts, err := stores.AppointmentStore.List(r.Context(), appointmentStore.ListFilter{
		Date:       query.Date,
		From:       query.From,
		To:         query.To,
		Location:   query.Location,
		Status:     query.Status,
		CustomerID: query.CustomerID,
		Limit:      query.Limit,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": toAppointmentDTOs(appts)})
}

type bookAppointmentRequest struct {
	CustomerID  string   `json:"customer_id" validate:"required"`
	TreatmentID string   `json:"treatment_id" validate:"required"`
	Location    string   `json:"location" validate:"required,location"`
	Date        string   `json:"date" validate:"required,date"`
	StartTime   string   `json:"start_time" validate:"required,clock"`
	Notes       string   `json:"notes" validate:"max=2000"`
	PriceEUR    *float64 `json:"price_eur" validate:"omitempty,gte=0"`
}

func bookingDeps() orchestrators.BookAppointmentDeps {
	return orchestrators.BookAppointmentDeps{
		AppointmentStore: stores.AppointmentStore,
		TreatmentStore:   stores.TreatmentStore,
		CustomerStore:    stores.CustomerStore,
		Locker:           services.Locker,
		LockTTL:          cfg.BookingLockTTL,
		LockWait:         cfg.BookingLockWait,
		AuditStore:       stores.AuditStore,
		Confirmation: &orchestrators.ConfirmationDeps{
			TemplateStore: stores.TemplateStore,
			OutboxStore:   stores.OutboxStore,
		},
		Timezone:   cfg.Location,
		GenerateID: generateID,
		Now:        timeNow,
	}
}

// handleBookAppointment handles POST /api/appointments
// POST: 201 with the appointment, 409 when the slot is taken,
// 503 when the day's bookings could not be read
func handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req bookAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	appt, err := orchestrators.ExecuteBookAppointment(r.Context(), orchestrators.BookAppointmentInput{
		CustomerID:  req.CustomerID,
		TreatmentID: req.TreatmentID,
		Location:    req.Location,
		Date:        req.Date,
		StartTime:   req.StartTime,
		Notes:       req.Notes,
		PriceEUR:    req.PriceEUR,
		Actor:       actorFor(r, sess),
	}, bookingDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentDTO(appt))
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed cancelled no_show"`
	Reason string `json:"reason" validate:"max=500"`
}

func statusDeps() orchestrators.UpdateAppointmentStatusDeps {
	return orchestrators.UpdateAppointmentStatusDeps{
		AppointmentStore: stores.AppointmentStore,
		AuditStore:       stores.AuditStore,
		Now:              timeNow,
	}
}

// handleAppointmentStatus handles POST /api/appointments/{id}/status
func handleAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	appt, err := orchestrators.ExecuteUpdateAppointmentStatus(r.Context(), orchestrators.UpdateAppointmentStatusInput{
		AppointmentID: r.PathValue("id"),
		Status:        req.Status,
		Reason:        req.Reason,
		Actor:         actorFor(r, sess),
	}, statusDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(appt))
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// handleCancelAppointment handles POST /api/appointments/{id}/cancel
func handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	appt, err := orchestrators.ExecuteCancelAppointment(r.Context(), orchestrators.CancelAppointmentInput{
		AppointmentID: r.PathValue("id"),
		Reason:        req.Reason,
		Actor:         actorFor(r, sess),
	}, statusDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(appt))
}

func scheduleQuery(r *http.Request) projections.GetScheduleQuery {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		date = timeNow().In(cfg.Location).Format("2006-01-02")
	}
	return projections.GetScheduleQuery{Date: date, Location: q.Get("location")}
}

// handleDaySchedule handles GET /api/schedule/day?date=&location=
func handleDaySchedule(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	day, err := projections.QueryGetDailySchedule(r.Context(), scheduleQuery(r),
		projections.GetScheduleDeps{ScheduleStore: stores.AppointmentStore})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// handleWeekSchedule handles GET /api/schedule/week?date=&location=
func handleWeekSchedule(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	week, err := projections.QueryGetWeekSchedule(r.Context(), scheduleQuery(r),
		projections.GetScheduleDeps{ScheduleStore: stores.AppointmentStore})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}

// slotDuration reads duration= directly, or the duration of treatment_id=.
func slotDuration(r *http.Request) (int, error) {
	q := r.URL.Query()
	if id := q.Get("treatment_id"); id != "" {
		t, err := stores.TreatmentStore.GetByID(r.Context(), id)
		if err != nil {
			return 0, err
		}
		return t.DurationMinutes, nil
	}
	d, _ := strconv.Atoi(q.Get("duration"))
	return d, nil
}

// daySlots runs the day-slot projection for a location.
func daySlots(w http.ResponseWriter, r *http.Request, location string) {
	duration, err := slotDuration(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := projections.QueryGetDaySlots(r.Context(), projections.GetDaySlotsQuery{
		Date:            r.URL.Query().Get("date"),
		Location:        location,
		DurationMinutes: duration,
	}, projections.GetDaySlotsDeps{
		AppointmentStore: stores.AppointmentStore,
		Timezone:         cfg.Location,
		Now:              timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDaySlots handles GET /api/slots?date=&location=&duration=|treatment_id=
func handleDaySlots(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	daySlots(w, r, r.URL.Query().Get("location"))
}

type checkSlotQuery struct {
	Date      string `json:"date" validate:"required,date"`
	Location  string `json:"location" validate:"required,location"`
	StartTime string `json:"start_time" validate:"required"`
	Duration  int    `json:"duration"`
}

// handleCheckSlot handles GET /api/slots/check?date=&location=&start_time=&duration=
// Malformed start_time and duration are reported by the checker itself.
func handleCheckSlot(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	duration, err := slotDuration(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	query := checkSlotQuery{
		Date:      q.Get("date"),
		Location:  q.Get("location"),
		StartTime: q.Get("start_time"),
		Duration:  duration,
	}
	if err := validate.Struct(query); err != nil {
		writeDecodeError(w, err)
		return
	}
	result, err := orchestrators.ExecuteCheckSlot(r.Context(), orchestrators.CheckSlotInput{
		Date:            query.Date,
		Location:        query.Location,
		StartTime:       query.StartTime,
		DurationMinutes: query.Duration,
	}, orchestrators.CheckSlotDeps{AppointmentStore: stores.AppointmentStore})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRevenueStats handles GET /api/stats?from=&to=&location=
func handleRevenueStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	q := r.URL.Query()
	result, err := projections.QueryGetRevenueStats(r.Context(), projections.GetRevenueStatsQuery{
		From:     q.Get("from"),
		To:       q.Get("to"),
		Location: q.Get("location"),
	}, projections.GetRevenueStatsDeps{
		RevenueStore: stores.AppointmentStore,
		Timezone:     cfg.Location,
		Now:          timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleBirthdays handles GET /api/birthdays?days=
func handleBirthdays(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	result, err := projections.QueryGetUpcomingBirthdays(r.Context(), projections.GetUpcomingBirthdaysQuery{Days: days},
		projections.GetUpcomingBirthdaysDeps{
			CustomerStore: stores.CustomerStore,
			Timezone:      cfg.Location,
			Now:           timeNow,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
