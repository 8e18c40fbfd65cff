package orchestrators

import (
	"context"
	"log/slog"

	"dairysense/internal/domain/audit"
)

// AuditRecorder stores audit events.
type AuditRecorder interface {
	Save(ctx context.Context, event audit.Event) error
}

// Actor identifies who triggered an operation.
type Actor struct {
	Email     string
	IPAddress string
	UserAgent string
}

// event starts an audit event attributed to the actor.
func (a Actor) event(category audit.Category, action audit.Action) audit.Event {
	return audit.NewEvent(a.Email, category, action).WithRequest(a.IPAddress, a.UserAgent)
}

// recordAudit saves an event. A failed write is logged and never fails the
// operation that already reached the API.
func recordAudit(ctx context.Context, rec AuditRecorder, e audit.Event) {
	if rec == nil {
		return
	}
	if err := rec.Save(ctx, e); err != nil {
		slog.Error("audit_save_failed", "category", e.Category, "action", e.Action, "error", err)
	}
}

func createOrUpdate(id int) audit.Action {
	if id == 0 {
		return audit.ActionCreate
	}
	return audit.ActionUpdate
}
