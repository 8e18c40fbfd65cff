// Package assignment models device-to-animal assignments and the rules that
// keep them from overlapping.
package assignment

import (
	"errors"
	"time"

	"dairysense/internal/domain/period"
)

// Domain errors
var (
	ErrAnimalRequired    = errors.New("an animal must be selected")
	ErrDeviceRequired    = errors.New("a device must be selected")
	ErrStartRequired     = errors.New("start date is required")
	ErrEndBeforeStart    = errors.New("end date cannot be before start date")
	ErrAnimalUnavailable = errors.New("this animal already has a device assigned in the selected period")
	ErrDeviceUnavailable = errors.New("this device is already assigned to another animal in the selected period")
)

// ResourceKind selects which side of an assignment a check applies to.
type ResourceKind int

const (
	KindAnimal ResourceKind = iota
	KindDevice
)

// String returns the lower-case kind name.
func (k ResourceKind) String() string {
	if k == KindDevice {
		return "device"
	}
	return "animal"
}

// Assignment binds one device to one animal over a closed date range.
// A zero EndDate means the assignment is still open.
type Assignment struct {
	ID        int
	AnimalID  int
	DeviceID  int
	StartDate time.Time
	EndDate   time.Time
}

// IsOpen reports whether the assignment has no end date.
func (a Assignment) IsOpen() bool {
	return a.EndDate.IsZero()
}

// ResourceID returns the animal or device id depending on kind.
func (a Assignment) ResourceID(kind ResourceKind) int {
	if kind == KindDevice {
		return a.DeviceID
	}
	return a.AnimalID
}

// ActiveOn reports whether the assignment covers the given calendar date.
func (a Assignment) ActiveOn(date time.Time) bool {
	d := period.DateOnly(date)
	if d.Before(period.DateOnly(a.StartDate)) {
		return false
	}
	return a.IsOpen() || !d.After(period.DateOnly(a.EndDate))
}

// Input is the form payload for creating or updating an assignment.
type Input struct {
	AnimalID  int
	DeviceID  int
	StartDate time.Time
	EndDate   time.Time
}

// Validate checks the required fields and date order.
// PRE: Input is populated from the form
// POST: Returns nil if valid, a domain error otherwise
func (in Input) Validate() error {
	if in.AnimalID == 0 {
		return ErrAnimalRequired
	}
	if in.DeviceID == 0 {
		return ErrDeviceRequired
	}
	if in.StartDate.IsZero() {
		return ErrStartRequired
	}
	if !in.EndDate.IsZero() && period.DateOnly(in.EndDate).Before(period.DateOnly(in.StartDate)) {
		return ErrEndBeforeStart
	}
	return nil
}

// Proposed returns the interval this input would occupy for the given kind.
func (in Input) Proposed(kind ResourceKind, excludeID int) ProposedInterval {
	id := in.AnimalID
	if kind == KindDevice {
		id = in.DeviceID
	}
	return ProposedInterval{
		ResourceID:          id,
		Kind:                kind,
		StartDate:           in.StartDate,
		EndDate:             in.EndDate,
		ExcludeAssignmentID: excludeID,
	}
}

// ProposedInterval is a candidate assignment window for one resource.
// A zero StartDate means nothing has been entered yet. A zero EndDate means open-ended.
// ExcludeAssignmentID is the assignment being edited; 0 excludes nothing.
type ProposedInterval struct {
	ResourceID          int
	Kind                ResourceKind
	StartDate           time.Time
	EndDate             time.Time
	ExcludeAssignmentID int
}

// Candidate is anything that can be offered for assignment.
type Candidate interface {
	CandidateID() int
}

// HasConflict reports whether p overlaps any existing assignment of the same resource.
// PRE: none
// POST: false when p has no start date
// INVARIANT: existing is not mutated
func HasConflict(p ProposedInterval, existing []Assignment) bool {
	if p.StartDate.IsZero() {
		return false
	}
	for _, a := range existing {
		if conflicts(p, a) {
			return true
		}
	}
	return false
}

// Conflicts returns every existing assignment that p overlaps, in input order.
func Conflicts(p ProposedInterval, existing []Assignment) []Assignment {
	if p.StartDate.IsZero() {
		return nil
	}
	var out []Assignment
	for _, a := range existing {
		if conflicts(p, a) {
			out = append(out, a)
		}
	}
	return out
}

// FilterAvailable returns the candidates that could take the proposed window
// without overlapping an existing assignment. p.ResourceID and p.Kind are
// replaced per candidate. With no start date every candidate is returned.
// PRE: none
// POST: survivors keep their input order
func FilterAvailable[C Candidate](candidates []C, kind ResourceKind, p ProposedInterval, existing []Assignment) []C {
	if p.StartDate.IsZero() {
		return candidates
	}
	out := make([]C, 0, len(candidates))
	for _, c := range candidates {
		q := p
		q.ResourceID = c.CandidateID()
		q.Kind = kind
		if !HasConflict(q, existing) {
			out = append(out, c)
		}
	}
	return out
}

// Overlap is a pair of stored assignments that share a resource on some day.
type Overlap struct {
	Kind   ResourceKind
	First  Assignment
	Second Assignment
}

// FindOverlaps checks every pair of assignments with the same rule used for
// new ones. Each pair is reported once per kind, First earlier in input order.
func FindOverlaps(existing []Assignment) []Overlap {
	var out []Overlap
	for i, a := range existing {
		in := Input{AnimalID: a.AnimalID, DeviceID: a.DeviceID, StartDate: a.StartDate, EndDate: a.EndDate}
		rest := existing[i+1:]
		for _, kind := range []ResourceKind{KindAnimal, KindDevice} {
			for _, b := range Conflicts(in.Proposed(kind, a.ID), rest) {
				out = append(out, Overlap{Kind: kind, First: a, Second: b})
			}
		}
	}
	return out
}

// conflicts applies the closed-interval overlap rule. Touching days overlap.
func conflicts(p ProposedInterval, a Assignment) bool {
	if a.ResourceID(p.Kind) != p.ResourceID {
		return false
	}
	if p.ExcludeAssignmentID != 0 && a.ID == p.ExcludeAssignmentID {
		return false
	}

	ps := period.DateOnly(p.StartDate)
	pe := period.DateOnly(p.EndDate)
	as := period.DateOnly(a.StartDate)
	ae := period.DateOnly(a.EndDate)

	switch {
	case a.IsOpen():
		return pe.IsZero() || !pe.Before(as)
	case pe.IsZero():
		return !ps.After(ae)
	default:
		return !ps.After(ae) && !as.After(pe)
	}
}
