package web

import (
	"net/http"
	"strconv"

	outboxStore "clinic/internal/adapters/storage/outbox"
	"clinic/internal/application/orchestrators"
	"clinic/internal/domain/outbox"
)

// outboxProcessor answers 503 when the server runs without an outbox worker.
func outboxProcessor(w http.ResponseWriter) (*orchestrators.OutboxProcessor, bool) {
	if services.Processor == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "outbox worker not configured")
		return nil, false
	}
	return services.Processor, true
}

// handleAdminOutbox handles GET /api/admin/outbox?status=&action_type=&limit=
// status defaults to failed; status=all lists every entry.
func handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 200 {
		limit = n
	}
	status := q.Get("status")
	if status == "" {
		status = outbox.StatusFailed
	}
	if status == "all" {
		status = ""
	}

	entries, err := stores.OutboxStore.List(ctx, outboxStore.ListFilter{
		Status:     status,
		ActionType: q.Get("action_type"),
		Limit:      limit,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	counts, err := stores.OutboxStore.CountByStatus(ctx)
	if err != nil {
		internalError(w, err)
		return
	}

	out := make([]outboxEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toOutboxEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out, "counts": counts})
}

// handleAdminOutboxRetry handles POST /api/admin/outbox/{id}/retry
// POST: a failed entry gets a fresh round of attempts and runs once now
func handleAdminOutboxRetry(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	processor, ok := outboxProcessor(w)
	if !ok {
		return
	}
	entry, err := processor.RetryEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutboxEntryDTO(entry))
}

// handleAdminOutboxAbandon handles POST /api/admin/outbox/{id}/abandon
func handleAdminOutboxAbandon(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	processor, ok := outboxProcessor(w)
	if !ok {
		return
	}
	if err := processor.AbandonEntry(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": outbox.StatusAbandoned})
}
