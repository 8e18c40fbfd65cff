package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dairysense/internal/adapters/api"
	"dairysense/internal/domain/audit"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/reading"
)

// BaselineAPI is the slice of the API client used for baselines.
type BaselineAPI interface {
	ListReadings(ctx context.Context, q api.ReadingsQuery) ([]reading.Reading, error)
	CreateBaseline(ctx context.Context, animalID int, start, end time.Time, window int) error
	DeleteBaseline(ctx context.Context, animalID int, start, end time.Time) error
}

// BaselineDeps holds dependencies for the baseline orchestrators.
type BaselineDeps struct {
	API   BaselineAPI
	Audit AuditRecorder
	Now   func() time.Time
	Loc   *time.Location // operator's zone for day boundaries; nil is UTC
}

// BaselinePeriod is the animal and date range a baseline is computed over.
type BaselinePeriod struct {
	AnimalID int
	Start    time.Time
	End      time.Time
}

func (p BaselinePeriod) check(now time.Time) error {
	if p.AnimalID == 0 {
		return baseline.ErrAnimalRequired
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return baseline.ErrPeriodRequired
	}
	opts := period.BaselineOptions()
	opts.Now = now
	return period.Check(p.Start, p.End, opts)
}

// BaselinePreview is the hourly activity the baseline would be computed from.
type BaselinePreview struct {
	BaselinePeriod
	Readings int
	Buckets  []reading.HourBucket
	Coverage reading.Coverage
}

// Matches reports whether the preview was taken for p.
func (bp BaselinePreview) Matches(p BaselinePeriod) bool {
	return bp.AnimalID == p.AnimalID &&
		period.DateOnly(bp.Start).Equal(period.DateOnly(p.Start)) &&
		period.DateOnly(bp.End).Equal(period.DateOnly(p.End))
}

// ExecutePreviewBaseline fetches the readings for a candidate period and
// buckets them by hour.
// PRE: none
// POST: Returns a *period.Error when the range is rejected
func ExecutePreviewBaseline(ctx context.Context, p BaselinePeriod, deps BaselineDeps) (BaselinePreview, error) {
	if err := p.check(deps.Now()); err != nil {
		return BaselinePreview{}, err
	}
	from, to := reading.Window(p.Start, p.End, deps.Loc)
	readings, err := deps.API.ListReadings(ctx, api.ReadingsQuery{AnimalID: p.AnimalID, From: from, To: to})
	if err != nil {
		return BaselinePreview{}, fmt.Errorf("list readings: %w", err)
	}
	buckets := reading.Hourly(readings, p.Start, p.End, deps.Loc)
	return BaselinePreview{
		BaselinePeriod: p,
		Readings:       len(readings),
		Buckets:        buckets,
		Coverage:       reading.SummarizeHours(buckets),
	}, nil
}

// CreateBaselineInput carries input for creating a baseline.
type CreateBaselineInput struct {
	Period  BaselinePeriod
	Preview *BaselinePreview // the preview the operator saw, nil if none
	Window  int              // smoothing window in minutes; 0 uses the default
	Actor   Actor
}

// ExecuteCreateBaseline asks the API to compute a baseline.
// PRE: The operator previewed the same animal and period
// POST: Nothing is sent unless the preview found readings
func ExecuteCreateBaseline(ctx context.Context, input CreateBaselineInput, deps BaselineDeps) error {
	p := input.Period
	if err := p.check(deps.Now()); err != nil {
		return err
	}
	if input.Preview == nil || !input.Preview.Matches(p) {
		return baseline.ErrPreviewRequired
	}
	if input.Preview.Readings == 0 {
		return baseline.ErrNoReadings
	}
	window := input.Window
	if window <= 0 {
		window = baseline.DefaultWindow
	}
	if err := deps.API.CreateBaseline(ctx, p.AnimalID, p.Start, p.End, window); err != nil {
		return err
	}
	slog.Info("baseline_created", "animal_id", p.AnimalID, "start", period.FormatDate(p.Start), "end", period.FormatDate(p.End), "window", window)
	recordAudit(ctx, deps.Audit, input.Actor.
		event(audit.CategoryBaseline, audit.ActionCreate).
		WithResource("animal", p.AnimalID).
		WithDescription("Baseline "+period.FormatDate(p.Start)+" to "+period.FormatDate(p.End)))
	return nil
}

// ExecuteDeleteBaseline removes every hourly row of one baseline period.
func ExecuteDeleteBaseline(ctx context.Context, p BaselinePeriod, actor Actor, deps BaselineDeps) error {
	if p.AnimalID == 0 {
		return baseline.ErrAnimalRequired
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return baseline.ErrPeriodRequired
	}
	if err := deps.API.DeleteBaseline(ctx, p.AnimalID, p.Start, p.End); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryBaseline, audit.ActionDelete).
		WithResource("animal", p.AnimalID).
		WithDescription("Baseline "+period.FormatDate(p.Start)+" to "+period.FormatDate(p.End)))
	return nil
}
