package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"dairysense/internal/adapters/api"
	"dairysense/internal/adapters/http/middleware"
	"dairysense/internal/application/listutil"
	"dairysense/internal/application/orchestrators"
	"dairysense/internal/application/projections"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/session"
	"dairysense/internal/domain/user"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data map[string]any) {
	renderPage(w, r, http.StatusOK, templateName, data)
}

// renderPage executes layout.html around templateName into a buffer so a
// template failure still produces a clean 500.
func renderPage(w http.ResponseWriter, r *http.Request, status int, templateName string, data map[string]any) {
	sess, loggedIn := middleware.GetSessionFromContext(r.Context())

	funcMap := template.FuncMap{
		"currentEmail": func() string { return sess.Email },
		"isLoggedIn":   func() bool { return loggedIn },
		"csrfToken":    func() string { return csrf.Token(r) },
		"add":          func(a, b int) int { return a + b },
		"sub":          func(a, b int) int { return a - b },
		"date":         period.FormatDate,
		"selected":     func(value string, id int) bool { return id != 0 && value == strconv.Itoa(id) },
		"dict": func(kv ...any) map[string]any {
			m := make(map[string]any, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				if k, ok := kv[i].(string); ok {
					m[k] = kv[i+1]
				}
			}
			return m
		},
		"clock": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(location()).Format("2006-01-02 15:04")
		},
		"pageQuery": func(p listutil.Params, page int) template.URL {
			p.Page = page
			return template.URL(p.Query().Encode())
		},
		"sortQuery": func(p listutil.Params, col string) template.URL {
			p.Desc = p.Sort == col && !p.Desc
			p.Sort = col
			p.Page = 1
			return template.URL(p.Query().Encode())
		},
	}

	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS,
		"templates/layout.html", "templates/"+templateName)
	if err != nil {
		internalError(w, fmt.Errorf("parse %s: %w", templateName, err))
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, fmt.Errorf("render %s: %w", templateName, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func location() *time.Location {
	if app != nil && app.Loc != nil {
		return app.Loc
	}
	return time.UTC
}

// upstream returns the API bound to the caller's token.
// PRE: the route is behind RequireAuth
func upstream(r *http.Request) Upstream {
	return app.Connect(currentSession(r).APIToken)
}

func actorFrom(r *http.Request) orchestrators.Actor {
	return orchestrators.Actor{
		Email:     currentSession(r).Email,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// inputError is a form value that could not be converted.
type inputError struct {
	field string
}

func (e *inputError) Error() string {
	return "invalid value for " + e.field
}

// formReader converts form fields, keeping the first conversion error.
type formReader struct {
	r   *http.Request
	err error
}

func (f *formReader) str(key string) string {
	return strings.TrimSpace(f.r.FormValue(key))
}

func (f *formReader) raw(key string) string {
	return f.r.FormValue(key)
}

func (f *formReader) int(key string) int {
	s := f.str(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil && f.err == nil {
		f.err = &inputError{field: key}
	}
	return n
}

// bind fills dst from a JSON body, or calls fromForm for form posts.
func bind(r *http.Request, dst any, fromForm func(f *formReader)) error {
	if isJSONBody(r) {
		if err := strictDecode(r, dst); err != nil {
			return &inputError{field: "request body"}
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return &inputError{field: "form"}
	}
	f := &formReader{r: r}
	fromForm(f)
	return f.err
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &inputError{field: key}
	}
	return n, nil
}

// parseDate reads an optional "YYYY-MM-DD" value.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := period.ParseDate(s)
	if err != nil {
		return time.Time{}, &inputError{field: field}
	}
	return t, nil
}

// validationErrors are operator mistakes shown back on the form.
var validationErrors = []error{
	animal.ErrEmptyName, animal.ErrNegativeAge,
	device.ErrEmptySerial,
	user.ErrEmptyName, user.ErrInvalidEmail, user.ErrPasswordRequired, user.ErrPasswordMismatch,
	assignment.ErrAnimalRequired, assignment.ErrDeviceRequired, assignment.ErrStartRequired, assignment.ErrEndBeforeStart,
	baseline.ErrAnimalRequired, baseline.ErrPeriodRequired, baseline.ErrPreviewRequired, baseline.ErrNoReadings,
	orchestrators.ErrDeleteSelf, orchestrators.ErrMissingCredentials,
}

const upstreamUnavailable = "The DairySense API is unavailable. Try again shortly."

// classify maps an operation error to a status and a message safe to show.
func classify(err error) (int, string) {
	var (
		conflict *orchestrators.ConflictError
		perr     *period.Error
		ierr     *inputError
		apiErr   *api.Error
	)
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict, conflict.Error()
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity, perr.Error()
	case errors.As(err, &ierr):
		return http.StatusBadRequest, ierr.Error()
	case errors.Is(err, orchestrators.ErrInvalidCredentials):
		return http.StatusUnauthorized, orchestrators.ErrInvalidCredentials.Error()
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound, "The record no longer exists."
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		if apiErr.Message == "" {
			return http.StatusUnprocessableEntity, "The DairySense API rejected the request."
		}
		return http.StatusUnprocessableEntity, apiErr.Message
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, v.Error()
		}
	}
	return http.StatusBadGateway, upstreamUnavailable
}

// upstreamError reports a failed operation. A rejected API token ends the
// console session. render, when non-nil, redraws the page with the message
// for browser callers.
func upstreamError(w http.ResponseWriter, r *http.Request, err error, render func(status int, msg string)) {
	if errors.Is(err, api.ErrUnauthorized) {
		endSession(w, r)
		if isHTMLRequest(r) {
			redirect(w, r, "/login")
			return
		}
		jsonError(w, http.StatusUnauthorized, "session expired")
		return
	}

	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("upstream_error", "path", r.URL.Path, "request_id", middleware.RequestID(r.Context()), "error", err)
	} else {
		slog.Info("request_rejected", "path", r.URL.Path, "status", status, "reason", msg)
	}

	switch {
	case !isHTMLRequest(r):
		jsonError(w, status, msg)
	case render != nil:
		render(status, msg)
	default:
		http.Error(w, msg, status)
	}
}

// endSession forgets the caller's session after the API refused its token.
func endSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		return
	}
	if err := app.Sessions.Delete(r.Context(), sess.ID); err != nil {
		slog.Warn("session_delete_failed", "error", err)
	}
	middleware.ClearSessionCookie(w, app.SecureCookies)
	slog.Info("auth_event", "event", "token_rejected", "email", sess.Email)
}

// handleRoot sends "/" to the dashboard or the login page.
func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
		redirect(w, r, "/dashboard")
		return
	}
	redirect(w, r, "/login")
}

type loginRequest struct {
	Email    string
	Password string
}

// handleLogin handles GET (form) and POST (authenticate) for /login
func handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
			redirect(w, r, "/dashboard")
			return
		}
		renderTemplate(w, r, "login.html", nil)

	case http.MethodPost:
		var req loginRequest
		render := func(status int, msg string) {
			renderPage(w, r, status, "login.html", map[string]any{"Error": msg, "Email": req.Email})
		}
		err := bind(r, &req, func(f *formReader) {
			req.Email = f.str("Email")
			req.Password = f.raw("Password")
		})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}

		sess, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
			Email:    req.Email,
			Password: req.Password,
			Actor:    actorFrom(r),
		}, orchestrators.LoginDeps{
			Auth:     app.Auth,
			Sessions: app.Sessions,
			Audit:    app.Audit,
			TTL:      app.SessionTTL,
			Now:      timeNow,
		})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}

		middleware.SetSessionCookie(w, sess, app.SecureCookies)
		if isHTMLRequest(r) {
			redirect(w, r, "/dashboard")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"email": sess.Email, "expires_at": sess.ExpiresAt})

	default:
		methodNotAllowed(w)
	}
}

// handleLogout handles POST /logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	err := orchestrators.ExecuteLogout(r.Context(), currentSession(r), actorFrom(r), orchestrators.LogoutDeps{
		Sessions: app.Sessions,
		Audit:    app.Audit,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.ClearSessionCookie(w, app.SecureCookies)
	if isHTMLRequest(r) {
		redirect(w, r, "/login")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDashboard handles GET /dashboard
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	result, err := projections.QueryGetDashboard(r.Context(), projections.GetDashboardDeps{
		API: upstream(r),
		Now: timeNow,
	})
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	if isHTMLRequest(r) {
		renderTemplate(w, r, "dashboard.html", map[string]any{
			"Stats":        result.Stats,
			"RecentAlerts": result.RecentAlerts,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleHealthz reports whether the local database is reachable.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if app.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.DB.PingContext(ctx); err != nil {
			slog.Error("healthz_failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentSession is the caller's session; handlers behind RequireAuth always have one.
func currentSession(r *http.Request) session.Session {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	return sess
}
