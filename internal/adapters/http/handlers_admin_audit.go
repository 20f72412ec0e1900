package web

import (
	"net/http"
	"strconv"
	"time"

	auditStore "clinic/internal/adapters/storage/audit"
	auditDomain "clinic/internal/domain/audit"
)

// handleAdminAudit returns the audit trail (GET /api/admin/audit)
// PRE: User must be authenticated as admin
// POST: Returns events newest first with optional filters
func handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	q := r.URL.Query()

	filter := auditStore.Filter{}
	if category := q.Get("category"); category != "" {
		cat := auditDomain.Category(category)
		filter.Category = &cat
	}
	if action := q.Get("action"); action != "" {
		act := auditDomain.Action(action)
		filter.Action = &act
	}
	if actorID := q.Get("actor_id"); actorID != "" {
		filter.ActorID = &actorID
	}
	if location := q.Get("location"); location != "" {
		filter.Location = &location
	}
	if resourceID := q.Get("resource_id"); resourceID != "" {
		filter.ResourceID = &resourceID
	}
	if fromDate := q.Get("from"); fromDate != "" {
		filter.FromDate = &fromDate
	}
	if toDate := q.Get("to"); toDate != "" {
		filter.ToDate = &toDate
	}

	limit := 100
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}

	events, err := stores.AuditStore.List(r.Context(), filter, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	if events == nil {
		events = []auditDomain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "limit": limit})
}

// handleAdminPerf returns request and query timings (GET /api/admin/perf?minutes=)
func handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if perfCollector == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "performance collector not configured")
		return
	}
	minutes := 15
	if m, err := strconv.Atoi(r.URL.Query().Get("minutes")); err == nil && m > 0 && m <= 24*60 {
		minutes = m
	}
	since := timeNow().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(since, 10))
}
