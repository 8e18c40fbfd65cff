package web

import (
	"bytes"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"
)

var csrfField = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

// newTestServer serves NewMux over the fakes with a cookie-keeping client
// that does not follow redirects.
func newTestServer(t *testing.T) (*testEnv, *httptest.Server, *http.Client) {
	t.Helper()
	env := setup(t)
	// Sessions are checked against the real clock by the store.
	timeNow = time.Now

	h := NewMux(t.Context(), env.deps, Options{
		CSRFKey:            bytes.Repeat([]byte("k"), 32),
		RateLimitPerSecond: 1000,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return env, srv, client
}

func get(t *testing.T, c *http.Client, target, accept string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return do(t, c, req)
}

func postForm(t *testing.T, c *http.Client, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	return do(t, c, req)
}

func do(t *testing.T, c *http.Client, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestMux_AnonymousAccess(t *testing.T) {
	_, srv, client := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		accept     string
		wantStatus int
		wantTo     string
	}{
		{"page redirects to login", "/dashboard", "text/html", http.StatusSeeOther, "/login"},
		{"api gets 401", "/api/device-animals/available", "", http.StatusUnauthorized, ""},
		{"root goes to login", "/", "text/html", http.StatusSeeOther, "/login"},
		{"login form is public", "/login", "text/html", http.StatusOK, ""},
		{"health is public", "/healthz", "", http.StatusOK, ""},
		{"stylesheet is public", "/static/app.css", "", http.StatusOK, ""},
		{"admin is protected", "/admin/outbox", "text/html", http.StatusSeeOther, "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := get(t, client, srv.URL+tt.path, tt.accept)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantTo != "" && resp.Header.Get("Location") != tt.wantTo {
				t.Errorf("Location = %q, want %q", resp.Header.Get("Location"), tt.wantTo)
			}
		})
	}
}

func TestMux_SecurityHeaders(t *testing.T) {
	_, srv, client := newTestServer(t)

	resp, _ := get(t, client, srv.URL+"/login", "text/html")
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options missing")
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy missing")
	}
}

func TestMux_FormPostWithoutTokenIsRejected(t *testing.T) {
	_, srv, client := newTestServer(t)

	resp, _ := postForm(t, client, srv.URL+"/login", url.Values{"Email": {"ops@farm.io"}, "Password": {"correct horse"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

// TestMux_BrowserSignIn walks the login form through CSRF and the session
// cookie to a protected page, then signs out.
func TestMux_BrowserSignIn(t *testing.T) {
	env, srv, client := newTestServer(t)

	resp, body := get(t, client, srv.URL+"/login", "text/html")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login page status = %d", resp.StatusCode)
	}
	m := csrfField.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("login form has no CSRF token")
	}
	token := html.UnescapeString(m[1])

	resp, _ = postForm(t, client, srv.URL+"/login", url.Values{
		"gorilla.csrf.Token": {token},
		"Email":              {"ops@farm.io"},
		"Password":           {"correct horse"},
	})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Fatalf("login got %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, body = get(t, client, srv.URL+"/dashboard", "text/html")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "ops@farm.io") || !strings.Contains(body, "Active collars") {
		t.Error("dashboard should show the operator and the counters")
	}
	if env.up.token != "token-ops@farm.io" {
		t.Errorf("upstream token = %q", env.up.token)
	}

	m = csrfField.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("dashboard has no logout token")
	}
	resp, _ = postForm(t, client, srv.URL+"/logout", url.Values{"gorilla.csrf.Token": {html.UnescapeString(m[1])}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("logout got %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, _ = get(t, client, srv.URL+"/dashboard", "text/html")
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("after logout status = %d, want redirect", resp.StatusCode)
	}
}

func TestMux_JSONClientSkipsCSRF(t *testing.T) {
	env, srv, client := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/login", strings.NewReader(`{"Email":"ops@farm.io","Password":"correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, body := do(t, client, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = get(t, client, srv.URL+"/api/device-animals/available?start_date=2025-03-05", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("availability status = %d, body %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, `"animals"`) {
		t.Errorf("body = %s", body)
	}

	snap := env.deps.Collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestPaths) == 0 {
		t.Error("requests should be timed")
	}
}
