package web

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dairysense/internal/application/orchestrators"
	"dairysense/internal/domain/outbox"
)

var outboxStatuses = []string{
	outbox.StatusPending,
	outbox.StatusRetrying,
	outbox.StatusDone,
	outbox.StatusFailed,
	outbox.StatusAbandoned,
}

// handleAdminOutbox handles the notification outbox.
// Routes: GET /admin/outbox (list, failed by default), POST /admin/outbox/:id/retry, POST /admin/outbox/:id/abandon
func handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Path != "/admin/outbox" {
			http.NotFound(w, r)
			return
		}
		listOutbox(w, r)
	case http.MethodPost:
		outboxAction(w, r)
	default:
		methodNotAllowed(w)
	}
}

func listOutbox(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "":
		status = outbox.StatusFailed
	case "all":
		status = ""
	}

	entries, err := app.Outbox.ListByStatus(r.Context(), status, limit)
	if err != nil {
		internalError(w, err)
		return
	}

	if !isHTMLRequest(r) {
		if entries == nil {
			entries = []outbox.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}
	shown := status
	if shown == "" {
		shown = "all"
	}
	renderTemplate(w, r, "admin_outbox.html", map[string]any{
		"Entries":  entries,
		"Status":   shown,
		"Statuses": outboxStatuses,
	})
}

func outboxAction(w http.ResponseWriter, r *http.Request) {
	// Extract entry ID from path: /admin/outbox/:id/:action
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "admin" || parts[1] != "outbox" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	entryID, action := parts[2], parts[3]

	if app.Processor == nil {
		http.Error(w, "outbox processing is disabled", http.StatusServiceUnavailable)
		return
	}
	deps := orchestrators.OutboxActionDeps{Processor: app.Processor, Audit: app.Audit}

	var (
		err    error
		result string
	)
	switch action {
	case "retry":
		err = orchestrators.ExecuteRetryOutboxEntry(r.Context(), entryID, actorFrom(r), deps)
		result = "retry triggered"
	case "abandon":
		err = orchestrators.ExecuteAbandonOutboxEntry(r.Context(), entryID, actorFrom(r), deps)
		result = "abandoned"
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		http.Error(w, "entry not found", http.StatusNotFound)
		return
	case errors.Is(err, outbox.ErrTerminal):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		redirect(w, r, "/admin/outbox?status=all")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": result})
}

// handleAdminPerf returns the perf collector snapshot (GET /admin/perf).
// ?window= takes a Go duration, default 1h; ?top= caps each list, default 10.
func handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if app.Collector == nil {
		http.Error(w, "performance collection is disabled", http.StatusServiceUnavailable)
		return
	}
	window := time.Hour
	if d, err := time.ParseDuration(r.URL.Query().Get("window")); err == nil && d > 0 {
		window = d
	}
	top := 10
	if n, err := strconv.Atoi(r.URL.Query().Get("top")); err == nil && n > 0 && n <= 100 {
		top = n
	}
	writeJSON(w, http.StatusOK, app.Collector.Snapshot(timeNow().Add(-window), top))
}
