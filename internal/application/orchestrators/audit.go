package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"clinic/internal/domain/audit"
)

// AuditRecorder persists audit events.
type AuditRecorder interface {
	Save(ctx context.Context, e audit.Event) error
}

// Actor identifies who triggered an operation, for audit and created_by fields.
type Actor struct {
	ID        string // account ID or "salon:<location>"
	Role      string
	IPAddress string
}

// recordAudit saves e and logs instead of failing the caller when the audit
// store is unavailable. A nil recorder is allowed.
func recordAudit(ctx context.Context, rec AuditRecorder, e audit.Event) {
	if rec == nil {
		return
	}
	if err := rec.Save(ctx, e); err != nil {
		slog.Error("audit_save_failed", "action", e.Action, "resource_id", e.ResourceID, "error", err)
	}
}

func newEvent(now time.Time, actor Actor, category audit.Category, action audit.Action) audit.Event {
	return audit.NewEvent(now, actor.ID, actor.Role, category, action).WithIP(actor.IPAddress)
}
