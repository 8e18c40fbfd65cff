package projections

import (
	"context"
	"errors"
	"time"

	"dairysense/internal/adapters/api"
	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/reading"
	"dairysense/internal/domain/user"
)

var testTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testNow() time.Time { return testTime }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var errUpstream = errors.New("upstream down")

// fakeConsole is an in-memory Console.
type fakeConsole struct {
	animals     []animal.Animal
	breeds      []animal.Breed
	devices     []device.Device
	users       []user.User
	assignments []assignment.Assignment
	readings    []reading.Reading
	baselines   map[int][]baseline.Baseline
	alerts      []alert.Alert
	stats       api.DashboardStats
	failOn      string

	readingsQuery api.ReadingsQuery
}

func (f *fakeConsole) fail(op string) error {
	if f.failOn == op {
		return errUpstream
	}
	return nil
}

func (f *fakeConsole) ListAnimals(context.Context) ([]animal.Animal, error) {
	return f.animals, f.fail("animals")
}

func (f *fakeConsole) ListBreeds(context.Context) ([]animal.Breed, error) {
	return f.breeds, f.fail("breeds")
}

func (f *fakeConsole) ListDevices(context.Context) ([]device.Device, error) {
	return f.devices, f.fail("devices")
}

func (f *fakeConsole) ListUsers(context.Context) ([]user.User, error) {
	return f.users, f.fail("users")
}

func (f *fakeConsole) ListAssignments(context.Context) ([]assignment.Assignment, error) {
	return f.assignments, f.fail("assignments")
}

func (f *fakeConsole) ListReadings(_ context.Context, q api.ReadingsQuery) ([]reading.Reading, error) {
	f.readingsQuery = q
	return f.readings, f.fail("readings")
}

func (f *fakeConsole) ListBaselines(_ context.Context, animalID int) ([]baseline.Baseline, error) {
	return f.baselines[animalID], f.fail("baselines")
}

func (f *fakeConsole) ListAlerts(context.Context, alert.Filter) ([]alert.Alert, error) {
	return f.alerts, f.fail("alerts")
}

func (f *fakeConsole) DashboardStats(context.Context) (api.DashboardStats, error) {
	return f.stats, f.fail("stats")
}

var _ Console = (*fakeConsole)(nil)
