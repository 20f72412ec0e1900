package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic/internal/application/projections"
	"clinic/internal/domain/appointment"
)

const bookingDate = "2026-03-03"

func (e *testEnv) book(t *testing.T, start string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/appointments", map[string]any{
		"customer_id":  e.customerID,
		"treatment_id": e.consultation,
		"location":     appointment.LocationNeumarkt,
		"date":         bookingDate,
		"start_time":   start,
	}, withCookie(e.staff))
}

func TestBookAppointment_CreatedThenConflict(t *testing.T) {
	env := newTestEnv(t)

	rr := env.book(t, "10:00")
	if rr.Code != http.StatusCreated {
		t.Fatalf("first booking = %d: %s", rr.Code, rr.Body.String())
	}
	var appt appointmentDTO
	decodeBody(t, rr, &appt)
	if appt.EndTime != "10:30" || appt.Status != appointment.StatusConfirmed || appt.CreatedBy != "staff-1" {
		t.Errorf("appointment = %+v", appt)
	}

	tests := []struct {
		start string
		want  int
	}{
		{"10:00", http.StatusConflict},
		{"10:15", http.StatusConflict},
		{"09:45", http.StatusConflict},
		{"10:30", http.StatusCreated}, // touching the end is not an overlap
		{"09:30", http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			rr := env.book(t, tt.start)
			if rr.Code != tt.want {
				t.Errorf("book %s = %d, want %d: %s", tt.start, rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestBookAppointment_OtherLocationIndependent(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.book(t, "11:00"); rr.Code != http.StatusCreated {
		t.Fatalf("neumarkt = %d", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/api/appointments", map[string]any{
		"customer_id":  env.customerID,
		"treatment_id": env.consultation,
		"location":     appointment.LocationKW,
		"date":         bookingDate,
		"start_time":   "11:00",
	}, withCookie(env.staff))
	if rr.Code != http.StatusCreated {
		t.Fatalf("kw = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBookAppointment_ConflictDataUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.stores.AppointmentStore = unreadableDayStore{env.stores.AppointmentStore}

	rr := env.book(t, "10:00")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rr.Code, rr.Body.String())
	}
	if msg := errorMessage(t, rr); msg != "conflict data unavailable" {
		t.Errorf("error = %q", msg)
	}
}

func TestBookAppointment_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown location", map[string]any{"customer_id": env.customerID, "treatment_id": env.consultation, "location": "mitte", "date": bookingDate, "start_time": "10:00"}, http.StatusBadRequest},
		{"bad clock", map[string]any{"customer_id": env.customerID, "treatment_id": env.consultation, "location": "kw", "date": bookingDate, "start_time": "25:00"}, http.StatusBadRequest},
		{"past date", map[string]any{"customer_id": env.customerID, "treatment_id": env.consultation, "location": "kw", "date": "2026-03-01", "start_time": "10:00"}, http.StatusBadRequest},
		{"unknown customer", map[string]any{"customer_id": "nobody", "treatment_id": env.consultation, "location": "kw", "date": bookingDate, "start_time": "10:00"}, http.StatusNotFound},
		{"unknown field", map[string]any{"customer_id": env.customerID, "treatment_id": env.consultation, "location": "kw", "date": bookingDate, "start_time": "10:00", "room": 3}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/appointments", tt.body, withCookie(env.staff))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestBookAppointment_RequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/appointments", map[string]any{})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d, want 401", rr.Code)
	}
	portal := sessionCookie(t, "cust-1", "customer")
	rr = env.do(t, http.MethodPost, "/api/appointments", map[string]any{}, withCookie(portal))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("customer = %d, want 403", rr.Code)
	}
}

func TestDaySlots_MarksBookedSlots(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.book(t, "10:00"); rr.Code != http.StatusCreated {
		t.Fatalf("book = %d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/slots?date="+bookingDate+"&location=neumarkt&treatment_id="+env.consultation, nil, withCookie(env.staff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var result projections.GetDaySlotsResult
	decodeBody(t, rr, &result)
	if result.Date != bookingDate || result.Location != appointment.LocationNeumarkt || result.DurationMinutes != 30 {
		t.Fatalf("result header = %+v", result)
	}
	got := map[string]projections.SlotStatus{}
	for _, s := range result.Slots {
		got[s.Time] = s
	}
	if s := got["10:00"]; !s.Blocked || s.Reason != projections.SlotConflict {
		t.Errorf("10:00 = %+v, want conflict", s)
	}
	if s := got["10:30"]; s.Blocked {
		t.Errorf("10:30 = %+v, want free", s)
	}
	if s := got["09:30"]; s.Blocked {
		t.Errorf("09:30 = %+v, want free", s)
	}
}

func TestDaySlots_UnreadableDayIs503(t *testing.T) {
	env := newTestEnv(t)
	env.stores.AppointmentStore = unreadableDayStore{env.stores.AppointmentStore}
	rr := env.do(t, http.MethodGet, "/api/slots?date="+bookingDate+"&location=kw&duration=30", nil, withCookie(env.staff))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestCheckSlot(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.book(t, "14:00"); rr.Code != http.StatusCreated {
		t.Fatalf("book = %d", rr.Code)
	}
	tests := []struct {
		start   string
		blocked bool
	}{
		{"13:45", true},
		{"14:29", true},
		{"13:30", false},
		{"14:30", false},
	}
	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/slots/check?date="+bookingDate+"&location=neumarkt&duration=30&start_time="+tt.start, nil, withCookie(env.staff))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
			}
			var res struct {
				Blocked     bool     `json:"blocked"`
				ConflictIDs []string `json:"conflict_ids"`
			}
			decodeBody(t, rr, &res)
			if res.Blocked != tt.blocked {
				t.Errorf("blocked = %v, want %v", res.Blocked, tt.blocked)
			}
			if tt.blocked && len(res.ConflictIDs) != 1 {
				t.Errorf("conflict_ids = %v", res.ConflictIDs)
			}
		})
	}
}

func TestCancelAppointment_FreesSlot(t *testing.T) {
	env := newTestEnv(t)
	rr := env.book(t, "12:00")
	if rr.Code != http.StatusCreated {
		t.Fatalf("book = %d", rr.Code)
	}
	var appt appointmentDTO
	decodeBody(t, rr, &appt)

	rr = env.do(t, http.MethodPost, "/api/appointments/"+appt.ID+"/cancel", map[string]any{}, withCookie(env.staff))
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel = %d: %s", rr.Code, rr.Body.String())
	}
	if rr := env.book(t, "12:00"); rr.Code != http.StatusCreated {
		t.Fatalf("rebook after cancel = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDaySchedule(t *testing.T) {
	env := newTestEnv(t)
	env.book(t, "09:00")
	env.book(t, "15:00")

	rr := env.do(t, http.MethodGet, "/api/schedule/day?date="+bookingDate+"&location=neumarkt", nil, withCookie(env.staff))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var day projections.DaySchedule
	decodeBody(t, rr, &day)
	if len(day.Appointments) != 2 || day.Appointments[0].StartTime != "09:00" {
		t.Fatalf("appointments = %+v", day.Appointments)
	}
	if day.Appointments[0].FirstName != "Lena" {
		t.Errorf("first row customer = %q", day.Appointments[0].FirstName)
	}
}
