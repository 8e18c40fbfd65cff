package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"dairysense/internal/adapters/api"
	"dairysense/internal/adapters/http/middleware"
	"dairysense/internal/adapters/http/perf"
	"dairysense/internal/adapters/storage"
	auditStore "dairysense/internal/adapters/storage/audit"
	outboxStore "dairysense/internal/adapters/storage/outbox"
	sessionStore "dairysense/internal/adapters/storage/session"
	"dairysense/internal/application/orchestrators"
	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/outbox"
	"dairysense/internal/domain/reading"
	"dairysense/internal/domain/session"
	"dairysense/internal/domain/user"
)

var testTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

type createdBaseline struct {
	AnimalID   int
	Start, End time.Time
	Window     int
}

// fakeUpstream is an in-memory DairySense API.
type fakeUpstream struct {
	animals     []animal.Animal
	breeds      []animal.Breed
	devices     []device.Device
	users       []user.User
	assignments []assignment.Assignment
	readings    []reading.Reading
	baselines   map[int][]baseline.Baseline
	alerts      []alert.Alert
	stats       api.DashboardStats

	// failOn maps an operation name to the error it returns.
	failOn map[string]error

	token            string
	readingsQuery    api.ReadingsQuery
	created          []createdBaseline
	deletedBaselines []createdBaseline
	deletedUsers     []int
	savedAssignments []assignment.Input
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		animals: []animal.Animal{
			{ID: 1, Name: "Mimosa", BreedID: 1, Age: 4, Earring: "BR-001"},
			{ID: 2, Name: "Estrela", BreedID: 2, Age: 3, Earring: "BR-002"},
		},
		breeds: []animal.Breed{{ID: 1, Name: "Holstein"}, {ID: 2, Name: "Jersey"}},
		devices: []device.Device{
			{ID: 1, SerialNumber: "SN-100", CreatedAt: day(1)},
			{ID: 2, SerialNumber: "SN-200", CreatedAt: day(2)},
		},
		users: []user.User{
			{ID: 1, Name: "Ops", Email: "ops@farm.io"},
			{ID: 2, Name: "Vet", Email: "vet@farm.io"},
		},
		assignments: []assignment.Assignment{
			{ID: 1, AnimalID: 1, DeviceID: 1, StartDate: day(1)},
		},
		readings: []reading.Reading{
			{ID: 1, AnimalID: 1, DeviceID: 1, AccelX: 1, CollectedAt: day(8).Add(9 * time.Hour)},
			{ID: 2, AnimalID: 1, DeviceID: 1, AccelY: 2, CollectedAt: day(8).Add(10 * time.Hour)},
		},
		baselines: map[int][]baseline.Baseline{
			1: {
				{ID: 1, AnimalID: 1, Hour: 0, BaselineENMO: 0.2, MADENMO: 0.05, PeriodStart: day(1), PeriodEnd: day(3), CreatedAt: day(4)},
				{ID: 2, AnimalID: 1, Hour: 1, BaselineENMO: 0.3, MADENMO: 0.05, PeriodStart: day(1), PeriodEnd: day(3), CreatedAt: day(4)},
			},
		},
		alerts: []alert.Alert{
			{ID: 7, AnimalID: 2, DetectedAt: testTime.Add(-2 * time.Hour), ZScore: 3.4},
		},
		stats:  api.DashboardStats{ActiveCollars: 1, TotalAnimals: 2, TodayReadings: 40, Alerts: 1},
		failOn: map[string]error{},
	}
}

func (f *fakeUpstream) fail(op string) error {
	return f.failOn[op]
}

func (f *fakeUpstream) ListAnimals(context.Context) ([]animal.Animal, error) {
	return f.animals, f.fail("animals")
}

func (f *fakeUpstream) ListBreeds(context.Context) ([]animal.Breed, error) {
	return f.breeds, f.fail("breeds")
}

func (f *fakeUpstream) SaveAnimal(_ context.Context, a animal.Animal) (animal.Animal, error) {
	if err := f.fail("save_animal"); err != nil {
		return animal.Animal{}, err
	}
	if a.ID == 0 {
		a.ID = len(f.animals) + 1
		f.animals = append(f.animals, a)
		return a, nil
	}
	for i := range f.animals {
		if f.animals[i].ID == a.ID {
			f.animals[i] = a
			return a, nil
		}
	}
	return animal.Animal{}, api.ErrNotFound
}

func (f *fakeUpstream) DeleteAnimal(_ context.Context, id int) error {
	for i, a := range f.animals {
		if a.ID == id {
			f.animals = append(f.animals[:i], f.animals[i+1:]...)
			return nil
		}
	}
	return api.ErrNotFound
}

func (f *fakeUpstream) ListDevices(context.Context) ([]device.Device, error) {
	return f.devices, f.fail("devices")
}

func (f *fakeUpstream) SaveDevice(_ context.Context, d device.Device) (device.Device, error) {
	if d.ID == 0 {
		d.ID = len(f.devices) + 1
		d.APIKey = "key-" + d.SerialNumber
		d.CreatedAt = testTime
		f.devices = append(f.devices, d)
		return d, nil
	}
	for i := range f.devices {
		if f.devices[i].ID == d.ID {
			f.devices[i].SerialNumber = d.SerialNumber
			return f.devices[i], nil
		}
	}
	return device.Device{}, api.ErrNotFound
}

func (f *fakeUpstream) DeleteDevice(_ context.Context, id int) error {
	for i, d := range f.devices {
		if d.ID == id {
			f.devices = append(f.devices[:i], f.devices[i+1:]...)
			return nil
		}
	}
	return api.ErrNotFound
}

func (f *fakeUpstream) ListUsers(context.Context) ([]user.User, error) {
	return f.users, f.fail("users")
}

func (f *fakeUpstream) SaveUser(_ context.Context, id int, in user.Input) (user.User, error) {
	u := user.User{ID: id, Name: in.Name, Email: in.Email}
	if id == 0 {
		u.ID = len(f.users) + 1
		f.users = append(f.users, u)
		return u, nil
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i] = u
			return u, nil
		}
	}
	return user.User{}, api.ErrNotFound
}

func (f *fakeUpstream) DeleteUser(_ context.Context, id int) error {
	f.deletedUsers = append(f.deletedUsers, id)
	return nil
}

func (f *fakeUpstream) ListAssignments(context.Context) ([]assignment.Assignment, error) {
	return f.assignments, f.fail("assignments")
}

func (f *fakeUpstream) SaveAssignment(_ context.Context, id int, in assignment.Input) (assignment.Assignment, error) {
	f.savedAssignments = append(f.savedAssignments, in)
	a := assignment.Assignment{ID: id, AnimalID: in.AnimalID, DeviceID: in.DeviceID, StartDate: in.StartDate, EndDate: in.EndDate}
	if id == 0 {
		a.ID = len(f.assignments) + 1
		f.assignments = append(f.assignments, a)
		return a, nil
	}
	for i := range f.assignments {
		if f.assignments[i].ID == id {
			f.assignments[i] = a
			return a, nil
		}
	}
	return assignment.Assignment{}, api.ErrNotFound
}

func (f *fakeUpstream) DeleteAssignment(_ context.Context, id int) error {
	for i, a := range f.assignments {
		if a.ID == id {
			f.assignments = append(f.assignments[:i], f.assignments[i+1:]...)
			return nil
		}
	}
	return api.ErrNotFound
}

func (f *fakeUpstream) ListReadings(_ context.Context, q api.ReadingsQuery) ([]reading.Reading, error) {
	f.readingsQuery = q
	return f.readings, f.fail("readings")
}

func (f *fakeUpstream) ListBaselines(_ context.Context, animalID int) ([]baseline.Baseline, error) {
	return f.baselines[animalID], f.fail("baselines")
}

func (f *fakeUpstream) CreateBaseline(_ context.Context, animalID int, start, end time.Time, window int) error {
	f.created = append(f.created, createdBaseline{AnimalID: animalID, Start: start, End: end, Window: window})
	return f.fail("create_baseline")
}

func (f *fakeUpstream) DeleteBaseline(_ context.Context, animalID int, start, end time.Time) error {
	f.deletedBaselines = append(f.deletedBaselines, createdBaseline{AnimalID: animalID, Start: start, End: end})
	return nil
}

func (f *fakeUpstream) ListAlerts(context.Context, alert.Filter) ([]alert.Alert, error) {
	return f.alerts, f.fail("alerts")
}

func (f *fakeUpstream) DashboardStats(context.Context) (api.DashboardStats, error) {
	return f.stats, f.fail("stats")
}

// fakeAuth accepts one password.
type fakeAuth struct {
	password string
	err      error
}

func (a *fakeAuth) Login(_ context.Context, email, password string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if password != a.password {
		return "", api.ErrUnauthorized
	}
	return "token-" + email, nil
}

// fakeExecutor records outbox deliveries.
type fakeExecutor struct {
	calls int
	err   error
}

func (e *fakeExecutor) Execute(context.Context, string) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return "msg-1", nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testEnv is the handler globals plus the fakes behind them.
type testEnv struct {
	up       *fakeUpstream
	deps     *Deps
	sessions *sessionStore.MemoryStore
	audit    *auditStore.SQLiteStore
	outbox   *outboxStore.SQLiteStore
	executor *fakeExecutor
}

// setup installs fresh globals with the clock fixed at testTime.
func setup(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	env := &testEnv{
		up:       newFakeUpstream(),
		sessions: sessionStore.NewMemoryStore(),
		audit:    auditStore.NewSQLiteStore(db),
		outbox:   outboxStore.NewSQLiteStore(db),
		executor: &fakeExecutor{},
	}
	env.deps = &Deps{
		Auth: &fakeAuth{password: "correct horse"},
		Connect: func(token string) Upstream {
			env.up.token = token
			return env.up
		},
		Sessions: env.sessions,
		Audit:    env.audit,
		Outbox:   env.outbox,
		Processor: orchestrators.NewOutboxProcessor(env.outbox, map[string]orchestrators.ActionExecutor{
			outbox.ActionTypeAlertEmail: env.executor,
		}),
		Collector:  perf.NewCollector(100),
		DB:         db,
		SessionTTL: time.Hour,
	}
	app = env.deps

	prev := timeNow
	timeNow = func() time.Time { return testTime }
	t.Cleanup(func() {
		timeNow = prev
		app = nil
	})
	return env
}

// testSession is the operator the requests run as. It expires an hour from
// the real clock so the memory store keeps it.
func testSession() session.Session {
	now := time.Now()
	return session.Session{
		ID:        "sess-1",
		Email:     "ops@farm.io",
		APIToken:  "api-token-1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

// authRequest builds a JSON request carrying sess.
func authRequest(method, target string, body string, sess session.Session) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := middleware.ContextWithSession(req.Context(), sess)
	return req.WithContext(ctx)
}

// pageRequest builds a browser request carrying sess. A non-nil form is
// posted url-encoded.
func pageRequest(method, target string, form url.Values, sess session.Session) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept", "text/html")
	ctx := middleware.ContextWithSession(req.Context(), sess)
	return req.WithContext(ctx)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, rec, &body)
	return body.Error
}
