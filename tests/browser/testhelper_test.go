//go:build browser

package browser_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"dairysense/internal/adapters/api"
	web "dairysense/internal/adapters/http"
	"dairysense/internal/adapters/http/perf"
	"dairysense/internal/adapters/storage"
	auditStore "dairysense/internal/adapters/storage/audit"
	outboxStore "dairysense/internal/adapters/storage/outbox"
	sessionStore "dairysense/internal/adapters/storage/session"
)

const (
	operatorEmail    = "ops@farm.io"
	operatorPassword = "correct horse"
)

// fakeAPI serves the subset of the DairySense API the console pages read,
// with assignments kept in memory so saves show up on the next list.
type fakeAPI struct {
	mu          sync.Mutex
	assignments []map[string]any
	nextID      int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		assignments: []map[string]any{
			{"id": 1, "animal_id": 1, "device_id": 1, "start_date": "2025-03-01", "end_date": nil},
		},
		nextID: 2,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	fixed := func(v any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, v) }
	}

	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != operatorEmail || body["password"] != operatorPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "browser-token"})
	})
	mux.HandleFunc("GET /dashboard/stats", fixed(map[string]int{"activeCollars": 1, "totalAnimals": 2, "todayReadings": 0, "alerts": 0}))
	mux.HandleFunc("GET /animals", fixed([]map[string]any{
		{"id": 1, "name": "Mimosa", "breed_id": 1, "age": 4, "earring": "BR-001"},
		{"id": 2, "name": "Estrela", "breed_id": 1, "age": 3, "earring": "BR-002"},
	}))
	mux.HandleFunc("GET /breeds", fixed([]map[string]any{{"id": 1, "name": "Holstein"}}))
	mux.HandleFunc("GET /devices", fixed([]map[string]any{
		{"id": 1, "serial_number": "SN-100", "created_at": "2025-01-01T00:00:00.000Z"},
		{"id": 2, "serial_number": "SN-200", "created_at": "2025-01-02T00:00:00.000Z"},
	}))
	mux.HandleFunc("GET /users", fixed([]map[string]any{{"id": 1, "name": "Ops", "email": operatorEmail}}))
	mux.HandleFunc("GET /alerts", fixed([]any{}))
	mux.HandleFunc("GET /readings", fixed([]any{}))
	mux.HandleFunc("GET /animals/{id}/activity_baselines", fixed([]any{}))

	mux.HandleFunc("GET /device_animals", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.assignments)
	})
	mux.HandleFunc("POST /device_animals", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DeviceAnimal map[string]any `json:"device_animal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		row := body.DeviceAnimal
		row["id"] = f.nextID
		f.nextID++
		f.assignments = append(f.assignments, row)
		writeJSON(w, http.StatusCreated, row)
	})
	return mux
}

// testApp holds the running console, its fake API and the Playwright handles.
type testApp struct {
	BaseURL string
	API     *fakeAPI
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// newTestApp starts the console against a fake API and a temp SQLite DB.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := sql.Open("sqlite", storage.DSN(filepath.Join(t.TempDir(), "browser.db")))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	fake := newFakeAPI()
	upstream := httptest.NewServer(fake.handler())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	addr := listener.Addr().String()
	baseURL := "http://" + addr

	ctx, cancel := context.WithCancel(context.Background())
	collector := perf.NewCollector(1000)
	timed := storage.NewTimedDB(db, collector)
	client := api.NewClient(upstream.URL, 5*time.Second, collector)
	handler := web.NewMux(ctx, &web.Deps{
		Auth:       client,
		Connect:    web.Connector(client),
		Sessions:   sessionStore.NewSQLiteStore(timed, bytes.Repeat([]byte("s"), 32)),
		Audit:      auditStore.NewSQLiteStore(timed),
		Outbox:     outboxStore.NewSQLiteStore(timed),
		Collector:  collector,
		DB:         timed,
		SessionTTL: time.Hour,
	}, web.Options{
		CSRFKey:            bytes.Repeat([]byte("c"), 32),
		TrustedOrigins:     []string{addr},
		RateLimitPerSecond: 1000,
	})
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		cancel()
		upstream.Close()
		db.Close()
	})

	return &testApp{BaseURL: baseURL, API: fake, PW: pw, Browser: browser}
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// login signs in through the form and waits for the dashboard.
func (a *testApp) login(t *testing.T, page playwright.Page) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=Email]").Fill(operatorEmail); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("input[name=Password]").Fill(operatorPassword); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("form.card button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click sign in: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+"/dashboard", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect to dashboard: %v", err)
	}
}

// assignmentCount reports how many assignments the fake API holds.
func (a *testApp) assignmentCount() int {
	a.API.mu.Lock()
	defer a.API.mu.Unlock()
	return len(a.API.assignments)
}

func selectValue(t *testing.T, page playwright.Page, selector, value string) {
	t.Helper()
	if _, err := page.Locator(selector).SelectOption(playwright.SelectOptionValues{Values: &[]string{value}}); err != nil {
		t.Fatalf("select %s=%s: %v", selector, value, err)
	}
}
