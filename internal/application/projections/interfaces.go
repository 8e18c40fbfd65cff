package projections

import (
	"context"

	"dairysense/internal/adapters/api"
	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/reading"
	"dairysense/internal/domain/user"
)

// AnimalLister lists animals and breeds.
type AnimalLister interface {
	ListAnimals(ctx context.Context) ([]animal.Animal, error)
	ListBreeds(ctx context.Context) ([]animal.Breed, error)
}

// DeviceLister lists devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
}

// UserLister lists operator accounts.
type UserLister interface {
	ListUsers(ctx context.Context) ([]user.User, error)
}

// AssignmentLister lists device-to-animal assignments.
type AssignmentLister interface {
	ListAssignments(ctx context.Context) ([]assignment.Assignment, error)
}

// ReadingLister queries sensor readings.
type ReadingLister interface {
	ListReadings(ctx context.Context, q api.ReadingsQuery) ([]reading.Reading, error)
}

// BaselineLister lists an animal's hourly baseline rows.
type BaselineLister interface {
	ListBaselines(ctx context.Context, animalID int) ([]baseline.Baseline, error)
}

// AlertLister queries heat alerts.
type AlertLister interface {
	ListAlerts(ctx context.Context, f alert.Filter) ([]alert.Alert, error)
}

// HerdLister lists animals without breeds.
type HerdLister interface {
	ListAnimals(ctx context.Context) ([]animal.Animal, error)
}

// AlertSource lists alerts and the animals they name.
type AlertSource interface {
	AlertLister
	HerdLister
}

// StatsSource returns the dashboard counters.
type StatsSource interface {
	DashboardStats(ctx context.Context) (api.DashboardStats, error)
}

// Console is everything the API session offers. *api.Session implements it.
type Console interface {
	AnimalLister
	DeviceLister
	UserLister
	AssignmentLister
	ReadingLister
	BaselineLister
	AlertLister
	StatsSource
}

var _ Console = (*api.Session)(nil)
