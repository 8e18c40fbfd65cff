package web

import (
	"net/http"
	"strconv"

	auditStore "dairysense/internal/adapters/storage/audit"
	auditDomain "dairysense/internal/domain/audit"
)

var auditCategories = []auditDomain.Category{
	auditDomain.CategoryAnimal,
	auditDomain.CategoryDevice,
	auditDomain.CategoryAssignment,
	auditDomain.CategoryBaseline,
	auditDomain.CategoryUser,
	auditDomain.CategorySecurity,
	auditDomain.CategoryNotification,
}

var auditSeverities = []auditDomain.Severity{
	auditDomain.SeverityInfo,
	auditDomain.SeverityWarning,
	auditDomain.SeverityCritical,
}

// handleAdminAuditTrail renders the local audit trail (GET /admin/audit-trail)
// PRE: User must be authenticated
// POST: Renders audit events with optional filters, newest first
func handleAdminAuditTrail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	filter := auditStore.Filter{
		Category:   auditDomain.Category(q.Get("category")),
		Action:     auditDomain.Action(q.Get("action")),
		ActorEmail: q.Get("actor"),
		Severity:   auditDomain.Severity(q.Get("severity")),
		FromDate:   q.Get("from"),
		ToDate:     q.Get("to"),
	}
	for _, d := range []string{filter.FromDate, filter.ToDate} {
		if _, err := parseDate("date", d); err != nil {
			http.Error(w, "invalid date filter", http.StatusBadRequest)
			return
		}
	}

	// Parse limit, default to 100
	limit := 100
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}

	events, err := app.Audit.List(r.Context(), filter, limit)
	if err != nil {
		internalError(w, err)
		return
	}

	if !isHTMLRequest(r) {
		if events == nil {
			events = []auditDomain.Event{}
		}
		writeJSON(w, http.StatusOK, events)
		return
	}
	renderTemplate(w, r, "admin_audit_trail.html", map[string]any{
		"Events":     events,
		"Filter":     filter,
		"Limit":      limit,
		"Categories": auditCategories,
		"Severities": auditSeverities,
	})
}
