package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"dairysense/internal/adapters/api"
	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/audit"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/outbox"
	"dairysense/internal/domain/reading"
	"dairysense/internal/domain/session"
	"dairysense/internal/domain/user"
)

var testTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testNow() time.Time { return testTime }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var testActor = Actor{Email: "ops@farm.io", IPAddress: "10.0.0.1", UserAgent: "test"}

// fakeAPI records calls made to the DairySense API.
type fakeAPI struct {
	assignments []assignment.Assignment
	users       []user.User
	animals     []animal.Animal
	readings    []reading.Reading
	alerts      []alert.Alert
	err         error // returned by every mutating call when set

	savedAssignment *assignment.Input
	savedAnimal     *animal.Animal
	savedDevice     *device.Device
	savedUser       *user.Input
	deleted         []int
	baselineCalls   []string
	readingsQuery   api.ReadingsQuery
	alertFilter     alert.Filter
}

func (f *fakeAPI) ListAssignments(context.Context) ([]assignment.Assignment, error) {
	return f.assignments, nil
}

func (f *fakeAPI) SaveAssignment(_ context.Context, id int, in assignment.Input) (assignment.Assignment, error) {
	if f.err != nil {
		return assignment.Assignment{}, f.err
	}
	f.savedAssignment = &in
	if id == 0 {
		id = 99
	}
	return assignment.Assignment{ID: id, AnimalID: in.AnimalID, DeviceID: in.DeviceID, StartDate: in.StartDate, EndDate: in.EndDate}, nil
}

func (f *fakeAPI) DeleteAssignment(_ context.Context, id int) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) SaveAnimal(_ context.Context, a animal.Animal) (animal.Animal, error) {
	if f.err != nil {
		return animal.Animal{}, f.err
	}
	f.savedAnimal = &a
	if a.ID == 0 {
		a.ID = 7
	}
	return a, nil
}

func (f *fakeAPI) DeleteAnimal(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeAPI) SaveDevice(_ context.Context, d device.Device) (device.Device, error) {
	if f.err != nil {
		return device.Device{}, f.err
	}
	f.savedDevice = &d
	if d.ID == 0 {
		d.ID = 3
		d.APIKey = "secret-key"
	}
	return d, nil
}

func (f *fakeAPI) DeleteDevice(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeAPI) ListUsers(context.Context) ([]user.User, error) {
	return f.users, nil
}

func (f *fakeAPI) SaveUser(_ context.Context, id int, in user.Input) (user.User, error) {
	if f.err != nil {
		return user.User{}, f.err
	}
	f.savedUser = &in
	if id == 0 {
		id = 5
	}
	return user.User{ID: id, Name: in.Name, Email: in.Email}, nil
}

func (f *fakeAPI) DeleteUser(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeAPI) ListReadings(_ context.Context, q api.ReadingsQuery) ([]reading.Reading, error) {
	f.readingsQuery = q
	return f.readings, nil
}

func (f *fakeAPI) CreateBaseline(_ context.Context, animalID int, start, end time.Time, window int) error {
	f.baselineCalls = append(f.baselineCalls, "create")
	return f.err
}

func (f *fakeAPI) DeleteBaseline(_ context.Context, animalID int, start, end time.Time) error {
	f.baselineCalls = append(f.baselineCalls, "delete")
	return f.err
}

func (f *fakeAPI) ListAlerts(_ context.Context, flt alert.Filter) ([]alert.Alert, error) {
	f.alertFilter = flt
	return f.alerts, nil
}

func (f *fakeAPI) ListAnimals(context.Context) ([]animal.Animal, error) {
	return f.animals, nil
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (string, error) {
	if password != "right" {
		return "", &api.Error{Status: 401, Message: "Invalid"}
	}
	return "token-" + email, nil
}

// memAudit collects audit events.
type memAudit struct {
	events []audit.Event
}

func (m *memAudit) Save(_ context.Context, e audit.Event) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memAudit) last() audit.Event {
	if len(m.events) == 0 {
		return audit.Event{}
	}
	return m.events[len(m.events)-1]
}

// memSessions is an in-memory SessionWriter.
type memSessions struct {
	saved   map[string]session.Session
	deleted []string
}

func newMemSessions() *memSessions {
	return &memSessions{saved: make(map[string]session.Session)}
}

func (m *memSessions) Save(_ context.Context, s session.Session) error {
	m.saved[s.ID] = s
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	delete(m.saved, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// memWatermarks is an in-memory Watermarks.
type memWatermarks map[string]int

func (m memWatermarks) Get(_ context.Context, name string) (int, bool, error) {
	id, ok := m[name]
	return id, ok, nil
}

func (m memWatermarks) Advance(_ context.Context, name string, id int) error {
	if cur, ok := m[name]; !ok || id > cur {
		m[name] = id
	}
	return nil
}

// memOutbox is an in-memory outbox.Store.
type memOutbox struct {
	mu      sync.Mutex
	entries map[string]outbox.Entry
}

func newMemOutbox() *memOutbox {
	return &memOutbox{entries: make(map[string]outbox.Entry)}
}

func (m *memOutbox) GetByID(_ context.Context, id string) (outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return outbox.Entry{}, sql.ErrNoRows
	}
	return e, nil
}

func (m *memOutbox) Enqueue(_ context.Context, e outbox.Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.entries {
		if e.DedupKey != "" && x.DedupKey == e.DedupKey {
			return false, nil
		}
	}
	m.entries[e.ID] = e
	return true, nil
}

func (m *memOutbox) Save(_ context.Context, e outbox.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *memOutbox) ListPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	return m.ListByStatusIn(limit, outbox.StatusPending, outbox.StatusRetrying), nil
}

func (m *memOutbox) ListByStatus(_ context.Context, status string, limit int) ([]outbox.Entry, error) {
	if status == "" {
		return m.ListByStatusIn(limit), nil
	}
	return m.ListByStatusIn(limit, status), nil
}

func (m *memOutbox) ListByStatusIn(limit int, statuses ...string) []outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.Entry
	for _, e := range m.entries {
		match := len(statuses) == 0
		for _, s := range statuses {
			if e.Status == s {
				match = true
			}
		}
		if match {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DedupKey < out[j].DedupKey })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memOutbox) byKey(key string) outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.DedupKey == key {
			return e
		}
	}
	return outbox.Entry{}
}

// fakeExecutor returns err for the first failures calls, then succeeds.
type fakeExecutor struct {
	failures int
	calls    int
	payloads []string
}

var errDelivery = errors.New("provider unavailable")

func (f *fakeExecutor) Execute(_ context.Context, payload string) (string, error) {
	f.calls++
	f.payloads = append(f.payloads, payload)
	if f.calls <= f.failures {
		return "", errDelivery
	}
	return "ext-1", nil
}
