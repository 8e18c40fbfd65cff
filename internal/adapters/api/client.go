// Package api is the client for the DairySense REST API.
//
// The console never stores business data itself: animals, devices, users,
// assignments, readings, baselines, and alerts all live behind this API.
// Every call except Login needs the bearer token issued at login, carried
// by a Session value rather than read from shared state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"dairysense/internal/adapters/http/perf"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "http://localhost:3000/api"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

var (
	// ErrUnauthorized means the token was rejected; the session must end.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrNotFound means the resource does not exist.
	ErrNotFound = errors.New("api: not found")
)

// Error is a non-2xx response carrying the API's own message.
// errors.Is matches ErrUnauthorized for 401 and ErrNotFound for 404.
type Error struct {
	Status  int
	Message string
}

// Is maps status codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Client holds the connection settings shared by every session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	collector  *perf.Collector
}

// NewClient creates a client. A nil collector disables upstream timing.
// PRE: baseURL is an absolute URL, or empty for DefaultBaseURL
// POST: Returns a client safe for concurrent use
func NewClient(baseURL string, timeout time.Duration, collector *perf.Collector) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		collector:  collector,
	}
}

// WithHTTPClient replaces the underlying HTTP client. Intended for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.httpClient = hc
	return &cp
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session binds the client to one operator's bearer token.
type Session struct {
	client *Client
	token  string
}

// Session returns an authenticated view of the client.
func (c *Client) Session(token string) *Session {
	return &Session{client: c, token: token}
}

type loginResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Login exchanges credentials for a bearer token.
// PRE: email and password are non-empty
// POST: Returns the token, or *Error / ErrUnauthorized on rejection
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, "", http.MethodPost, "/users/login", nil, body, &out)
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		if out.Error != "" {
			return "", &Error{Status: http.StatusUnauthorized, Message: out.Error}
		}
		return "", ErrUnauthorized
	}
	return out.Token, nil
}

func (s *Session) get(ctx context.Context, path string, query url.Values, out any) error {
	return s.client.do(ctx, s.token, http.MethodGet, path, query, nil, out)
}

func (s *Session) send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return s.client.do(ctx, s.token, method, path, query, body, out)
}

func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.record(method, path, status, start)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 400 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"errors": [...]} from a body.
func errorMessage(data []byte) string {
	var body struct {
		Error  string          `json:"error"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	var list []string
	if err := json.Unmarshal(body.Errors, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	var fields map[string][]string
	if err := json.Unmarshal(body.Errors, &fields); err == nil && len(fields) > 0 {
		var parts []string
		for _, field := range slices.Sorted(maps.Keys(fields)) {
			for _, m := range fields[field] {
				parts = append(parts, field+" "+m)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func (c *Client) record(method, path string, status int, start time.Time) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	route := method + " " + routeOf(path)
	if status == 0 || status >= 500 {
		slog.Warn("upstream_call", "route", route, "status", status, "duration_ms", durationMs)
	} else {
		slog.Debug("upstream_call", "route", route, "status", status, "duration_ms", durationMs)
	}
	if c.collector != nil {
		c.collector.Record(perf.Entry{
			Kind:       perf.KindUpstream,
			Path:       route,
			StatusCode: status,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// routeOf replaces numeric path segments with ":id" so timings group by endpoint.
func routeOf(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
