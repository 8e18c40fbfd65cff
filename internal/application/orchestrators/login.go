package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dairysense/internal/adapters/api"
	"dairysense/internal/adapters/http/middleware"
	"dairysense/internal/domain/audit"
	"dairysense/internal/domain/session"
	"dairysense/internal/domain/user"
)

// Authenticator exchanges credentials for an API token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// SessionWriter persists console sessions.
type SessionWriter interface {
	Save(ctx context.Context, s session.Session) error
	Delete(ctx context.Context, id string) error
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string
	Password string
	Actor    Actor
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	Auth     Authenticator
	Sessions SessionWriter
	Audit    AuditRecorder
	TTL      time.Duration
	Now      func() time.Time
}

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ExecuteLogin authenticates against the API and opens a console session.
// PRE: none
// POST: On success the session is stored and holds the API token
// INVARIANT: The password is never stored or logged
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (session.Session, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return session.Session{}, ErrMissingCredentials
	}
	if !user.ValidEmail(email) {
		return session.Session{}, user.ErrInvalidEmail
	}

	token, err := deps.Auth.Login(ctx, email, input.Password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			slog.Info("auth_event", "event", "login_failed", "email", email)
			recordAudit(ctx, deps.Audit, input.Actor.withEmail(email).
				event(audit.CategorySecurity, audit.ActionReject).
				WithSeverity(audit.SeverityWarning).
				WithDescription("Rejected login"))
			return session.Session{}, ErrInvalidCredentials
		}
		return session.Session{}, fmt.Errorf("login: %w", err)
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	sess, err := middleware.NewSession(email, token, ttl, deps.Now())
	if err != nil {
		return session.Session{}, fmt.Errorf("new session: %w", err)
	}
	if err := deps.Sessions.Save(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}

	slog.Info("auth_event", "event", "login_success", "email", email)
	recordAudit(ctx, deps.Audit, input.Actor.withEmail(email).
		event(audit.CategorySecurity, audit.ActionLogin).
		WithDescription("Signed in"))
	return sess, nil
}

// LogoutDeps holds dependencies for Logout.
type LogoutDeps struct {
	Sessions SessionWriter
	Audit    AuditRecorder
}

// ExecuteLogout ends a console session. The API token is simply forgotten.
// POST: The session can no longer be loaded
func ExecuteLogout(ctx context.Context, sess session.Session, actor Actor, deps LogoutDeps) error {
	if err := deps.Sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	slog.Info("auth_event", "event", "logout", "email", sess.Email)
	recordAudit(ctx, deps.Audit, actor.withEmail(sess.Email).
		event(audit.CategorySecurity, audit.ActionLogout).
		WithDescription("Signed out"))
	return nil
}

func (a Actor) withEmail(email string) Actor {
	if a.Email == "" {
		a.Email = email
	}
	return a
}
