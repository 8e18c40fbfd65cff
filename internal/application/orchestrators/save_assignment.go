package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/audit"
	"dairysense/internal/domain/period"
)

// AssignmentAPI is the slice of the API client used for assignments.
type AssignmentAPI interface {
	ListAssignments(ctx context.Context) ([]assignment.Assignment, error)
	SaveAssignment(ctx context.Context, id int, in assignment.Input) (assignment.Assignment, error)
	DeleteAssignment(ctx context.Context, id int) error
}

// ConflictError reports which existing assignments block a save.
// errors.Is matches assignment.ErrAnimalUnavailable or ErrDeviceUnavailable.
type ConflictError struct {
	Kind      assignment.ResourceKind
	Conflicts []assignment.Assignment
}

func (e *ConflictError) Unwrap() error {
	if e.Kind == assignment.KindDevice {
		return assignment.ErrDeviceUnavailable
	}
	return assignment.ErrAnimalUnavailable
}

func (e *ConflictError) Error() string {
	ranges := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		end := period.FormatDate(c.EndDate)
		if end == "" {
			end = "open"
		}
		ranges[i] = period.FormatDate(c.StartDate) + " to " + end
	}
	return e.Unwrap().Error() + " (" + strings.Join(ranges, ", ") + ")"
}

// SaveAssignmentInput carries input for creating or editing an assignment.
type SaveAssignmentInput struct {
	ID    int // 0 creates
	Input assignment.Input
	Actor Actor
}

// AssignmentDeps holds dependencies for the assignment orchestrators.
type AssignmentDeps struct {
	API   AssignmentAPI
	Audit AuditRecorder
}

// ExecuteSaveAssignment checks the proposed window against every existing
// assignment for both the animal and the device, then saves it.
// PRE: none
// POST: Nothing is sent to the API unless both sides are free
// INVARIANT: The assignment being edited never conflicts with itself
func ExecuteSaveAssignment(ctx context.Context, input SaveAssignmentInput, deps AssignmentDeps) (assignment.Assignment, error) {
	if err := input.Input.Validate(); err != nil {
		return assignment.Assignment{}, err
	}

	existing, err := deps.API.ListAssignments(ctx)
	if err != nil {
		return assignment.Assignment{}, fmt.Errorf("list assignments: %w", err)
	}

	for _, kind := range []assignment.ResourceKind{assignment.KindAnimal, assignment.KindDevice} {
		conflicts := assignment.Conflicts(input.Input.Proposed(kind, input.ID), existing)
		if len(conflicts) > 0 {
			slog.Info("assignment_conflict", "kind", kind.String(), "animal_id", input.Input.AnimalID, "device_id", input.Input.DeviceID, "conflicts", len(conflicts))
			return assignment.Assignment{}, &ConflictError{Kind: kind, Conflicts: conflicts}
		}
	}

	saved, err := deps.API.SaveAssignment(ctx, input.ID, input.Input)
	if err != nil {
		return assignment.Assignment{}, err
	}

	recordAudit(ctx, deps.Audit, input.Actor.
		event(audit.CategoryAssignment, createOrUpdate(input.ID)).
		WithResource("device_animal", saved.ID).
		WithDescription(fmt.Sprintf("Device %d assigned to animal %d from %s", saved.DeviceID, saved.AnimalID, period.FormatDate(saved.StartDate))))
	slog.Info("assignment_saved", "id", saved.ID, "animal_id", saved.AnimalID, "device_id", saved.DeviceID)
	return saved, nil
}

// ExecuteDeleteAssignment removes an assignment.
func ExecuteDeleteAssignment(ctx context.Context, id int, actor Actor, deps AssignmentDeps) error {
	if err := deps.API.DeleteAssignment(ctx, id); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryAssignment, audit.ActionDelete).
		WithResource("device_animal", id).
		WithDescription("Assignment "+strconv.Itoa(id)+" deleted"))
	return nil
}
