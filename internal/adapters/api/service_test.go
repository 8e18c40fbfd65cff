package api

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"dairysense/internal/domain/alert"
)

// TestServiceAccount_RelogsOnExpiredToken verifies one re-login per rejected token.
func TestServiceAccount_RelogsOnExpiredToken(t *testing.T) {
	var logins atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/login":
			n := logins.Add(1)
			if n == 1 {
				_, _ = io.WriteString(w, `{"token":"stale"}`)
			} else {
				_, _ = io.WriteString(w, `{"token":"fresh"}`)
			}
		case "/alerts":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `[{"id":7,"animal_id":1,"detected_at":"2025-03-01T10:00:00Z","z_score":"3.1"}]`)
		case "/animals":
			_, _ = io.WriteString(w, `[]`)
		}
	})

	sa := NewServiceAccount(c, "bot@farm.io", "pw")
	alerts, err := sa.ListAlerts(context.Background(), alert.Filter{})
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != 7 || alerts[0].ZScore != 3.1 {
		t.Errorf("alerts = %+v", alerts)
	}
	if got := logins.Load(); got != 2 {
		t.Errorf("logins = %d, want 2", got)
	}

	if _, err := sa.ListAnimals(context.Background()); err != nil {
		t.Fatalf("ListAnimals: %v", err)
	}
	if got := logins.Load(); got != 2 {
		t.Errorf("token should be reused, logins = %d", got)
	}
}

// TestServiceAccount_GivesUpAfterOneRetry verifies a persistently rejected token surfaces the error.
func TestServiceAccount_GivesUpAfterOneRetry(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/login" {
			_, _ = io.WriteString(w, `{"token":"t"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := NewServiceAccount(c, "bot@farm.io", "pw").ListAnimals(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}
