package projections

import (
	"context"
	"fmt"

	"dairysense/internal/domain/baseline"
)

// BaselineListSource is what the baseline list reads.
type BaselineListSource interface {
	HerdLister
	BaselineLister
}

// QueryGetBaselineList groups every animal's baseline rows into periods,
// newest first.
// PRE: none
// POST: animals without baselines contribute nothing
func QueryGetBaselineList(ctx context.Context, src BaselineListSource) ([]baseline.Period, error) {
	animals, err := src.ListAnimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list animals: %w", err)
	}
	var periods []baseline.Period
	for _, a := range animals {
		rows, err := src.ListBaselines(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("list baselines for animal %d: %w", a.ID, err)
		}
		periods = append(periods, baseline.Group(a, rows)...)
	}
	baseline.SortNewestFirst(periods)
	return periods, nil
}
