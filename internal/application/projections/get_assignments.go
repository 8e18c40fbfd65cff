package projections

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/picker"
)

// AssignmentSource is what the assignment pages read.
type AssignmentSource interface {
	HerdLister
	DeviceLister
	AssignmentLister
}

// AssignmentRow is one assignment as listed.
type AssignmentRow struct {
	assignment.Assignment
	AnimalName   string
	DeviceSerial string
	Active       bool
}

// QueryGetAssignments lists assignments with names, most recent start first.
// PRE: none
// POST: Active is true for assignments covering today
func QueryGetAssignments(ctx context.Context, src AssignmentSource, now time.Time) ([]AssignmentRow, error) {
	animals, devices, existing, err := loadAssignmentData(ctx, src)
	if err != nil {
		return nil, err
	}
	names := animal.NameIndex(animals)
	serials := make(map[int]string, len(devices))
	for _, d := range devices {
		serials[d.ID] = d.SerialNumber
	}

	rows := make([]AssignmentRow, len(existing))
	for i, a := range existing {
		rows[i] = AssignmentRow{
			Assignment:   a,
			AnimalName:   names[a.AnimalID],
			DeviceSerial: serials[a.DeviceID],
			Active:       a.ActiveOn(now),
		}
		if rows[i].AnimalName == "" {
			rows[i].AnimalName = "#" + strconv.Itoa(a.AnimalID)
		}
		if rows[i].DeviceSerial == "" {
			rows[i].DeviceSerial = "#" + strconv.Itoa(a.DeviceID)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StartDate.After(rows[j].StartDate)
	})
	return rows, nil
}

// GetAvailabilityQuery is the window the assignment form is editing.
type GetAvailabilityQuery struct {
	StartDate           time.Time
	EndDate             time.Time
	ExcludeAssignmentID int
	AnimalID            int // currently selected, kept in the list
	DeviceID            int // currently selected, kept in the list
}

// Availability lists the animals and devices free over the window.
type Availability struct {
	Animals []picker.Option `json:"animals"`
	Devices []picker.Option `json:"devices"`
}

// QueryGetAvailability filters animals and devices down to those without an
// overlapping assignment. With no start date everything is available.
// PRE: none
// POST: the selected ids appear even when they conflict, so the form keeps them
func QueryGetAvailability(ctx context.Context, q GetAvailabilityQuery, src AssignmentSource) (Availability, error) {
	animals, devices, existing, err := loadAssignmentData(ctx, src)
	if err != nil {
		return Availability{}, err
	}
	p := assignment.ProposedInterval{
		StartDate:           q.StartDate,
		EndDate:             q.EndDate,
		ExcludeAssignmentID: q.ExcludeAssignmentID,
	}
	freeAnimals := picker.Options(assignment.FilterAvailable(animals, assignment.KindAnimal, p, existing))
	freeDevices := picker.Options(assignment.FilterAvailable(devices, assignment.KindDevice, p, existing))

	return Availability{
		Animals: picker.Keep(freeAnimals, picker.Options(animals), idValue(q.AnimalID)),
		Devices: picker.Keep(freeDevices, picker.Options(devices), idValue(q.DeviceID)),
	}, nil
}

func idValue(id int) string {
	if id == 0 {
		return ""
	}
	return strconv.Itoa(id)
}

func loadAssignmentData(ctx context.Context, src AssignmentSource) ([]animal.Animal, []device.Device, []assignment.Assignment, error) {
	animals, err := src.ListAnimals(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list animals: %w", err)
	}
	devices, err := src.ListDevices(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list devices: %w", err)
	}
	existing, err := src.ListAssignments(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list assignments: %w", err)
	}
	return animals, devices, existing, nil
}
