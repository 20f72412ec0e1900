package web

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic/internal/application/orchestrators"
	"clinic/internal/domain/salon"
	"clinic/internal/domain/slot"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"conflict data", fmt.Errorf("%w: %w", slot.ErrConflictDataUnavailable, errors.New("disk")), http.StatusServiceUnavailable},
		{"not found", fmt.Errorf("customer not found: %w", sql.ErrNoRows), http.StatusNotFound},
		{"slot taken", orchestrators.ErrSlotTaken, http.StatusConflict},
		{"slot taken by unreadable row", fmt.Errorf("%w: %w", orchestrators.ErrSlotTaken, slot.ErrMalformedTime), http.StatusConflict},
		{"wrong pin", salon.ErrWrongPIN, http.StatusUnauthorized},
		{"location mismatch", orchestrators.ErrSessionLocationMismatch, http.StatusForbidden},
		{"locked", orchestrators.ErrAccountLocked, http.StatusLocked},
		{"malformed time", slot.ErrMalformedTime, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteError_HidesInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errors.New("near \"SELEC\": syntax error"))
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "SELEC") {
		t.Fatalf("500 leaked: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	writeError(rr, fmt.Errorf("%w: %w", slot.ErrConflictDataUnavailable, errors.New("database is locked")))
	if rr.Code != http.StatusServiceUnavailable || strings.Contains(rr.Body.String(), "locked") {
		t.Fatalf("503 leaked: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	writeError(rr, fmt.Errorf("customer not found: %w", sql.ErrNoRows))
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"not found"`) {
		t.Fatalf("404 body = %s", rr.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP = %q", got)
	}
}
