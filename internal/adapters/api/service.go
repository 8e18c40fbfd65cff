package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
)

// ServiceAccount is a long-lived login used by background workers. It logs
// in lazily and once more when the API rejects a cached token.
type ServiceAccount struct {
	client   *Client
	email    string
	password string

	mu    sync.Mutex
	token string
}

// NewServiceAccount creates a service account. No request is made until first use.
func NewServiceAccount(c *Client, email, password string) *ServiceAccount {
	return &ServiceAccount{client: c, email: email, password: password}
}

func (a *ServiceAccount) session(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == "" {
		token, err := a.client.Login(ctx, a.email, a.password)
		if err != nil {
			return nil, err
		}
		slog.Info("auth_event", "event", "service_login", "email", a.email)
		a.token = token
	}
	return a.client.Session(a.token), nil
}

func (a *ServiceAccount) invalidate() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

// withSession runs fn, retrying once with a fresh token on ErrUnauthorized.
func withSession[T any](ctx context.Context, a *ServiceAccount, fn func(*Session) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		s, err := a.session(ctx)
		if err != nil {
			return zero, err
		}
		out, err := fn(s)
		if errors.Is(err, ErrUnauthorized) && attempt == 0 {
			a.invalidate()
			continue
		}
		return out, err
	}
}

// ListAlerts lists alerts as the service account.
func (a *ServiceAccount) ListAlerts(ctx context.Context, f alert.Filter) ([]alert.Alert, error) {
	return withSession(ctx, a, func(s *Session) ([]alert.Alert, error) {
		return s.ListAlerts(ctx, f)
	})
}

// ListAnimals lists animals as the service account.
func (a *ServiceAccount) ListAnimals(ctx context.Context) ([]animal.Animal, error) {
	return withSession(ctx, a, func(s *Session) ([]animal.Animal, error) {
		return s.ListAnimals(ctx)
	})
}
