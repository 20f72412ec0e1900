package web

import (
	"net/http"
	"testing"

	"clinic/internal/domain/outbox"
)

func TestAdminOutbox_ListRetryAbandon(t *testing.T) {
	env := newTestEnv(t)
	// The booking confirmation is queued in the outbox.
	if rr := env.book(t, "10:00"); rr.Code != http.StatusCreated {
		t.Fatalf("book = %d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/admin/outbox?status=all", nil, withCookie(env.admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", rr.Code, rr.Body.String())
	}
	var list struct {
		Entries []outboxEntryDTO `json:"entries"`
		Counts  map[string]int   `json:"counts"`
	}
	decodeBody(t, rr, &list)
	if len(list.Entries) != 1 || list.Entries[0].ActionType != outbox.ActionSendEmail {
		t.Fatalf("entries = %+v", list.Entries)
	}
	if list.Counts[outbox.StatusPending] != 1 {
		t.Errorf("counts = %v", list.Counts)
	}
	id := list.Entries[0].ID

	rr = env.do(t, http.MethodGet, "/api/admin/outbox", nil, withCookie(env.admin))
	decodeBody(t, rr, &list)
	if len(list.Entries) != 0 {
		t.Errorf("default filter shows %d non-failed entries", len(list.Entries))
	}

	rr = env.do(t, http.MethodPost, "/api/admin/outbox/"+id+"/retry", nil, withCookie(env.admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("retry = %d: %s", rr.Code, rr.Body.String())
	}
	var entry outboxEntryDTO
	decodeBody(t, rr, &entry)
	if entry.Status != outbox.StatusDone {
		t.Errorf("status after retry = %q, want done", entry.Status)
	}

	rr = env.do(t, http.MethodPost, "/api/admin/outbox/"+id+"/abandon", nil, withCookie(env.admin))
	if rr.Code != http.StatusConflict {
		t.Fatalf("abandon done entry = %d, want 409", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/admin/outbox/missing/retry", nil, withCookie(env.admin))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("retry missing = %d, want 404", rr.Code)
	}
}

func TestAdminOutbox_StaffForbidden(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodGet, "/api/admin/outbox", nil, withCookie(env.staff)); rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestAdminAudit_RecordsBookings(t *testing.T) {
	env := newTestEnv(t)
	env.book(t, "10:00")

	rr := env.do(t, http.MethodGet, "/api/admin/audit?category=booking&location=neumarkt", nil, withCookie(env.admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Events []map[string]any `json:"events"`
		Limit  int              `json:"limit"`
	}
	decodeBody(t, rr, &body)
	if len(body.Events) != 1 || body.Limit != 100 {
		t.Fatalf("events = %d, limit = %d", len(body.Events), body.Limit)
	}
}

func TestAdminPerf_WithoutCollector(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/admin/perf", nil, withCookie(env.admin))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
