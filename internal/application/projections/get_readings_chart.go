package projections

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dairysense/internal/adapters/api"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/reading"
)

// ReadingsChartSource is what the readings chart reads.
type ReadingsChartSource interface {
	ReadingLister
	BaselineLister
}

// GetReadingsChartQuery selects the animal and date range to chart.
type GetReadingsChartQuery struct {
	AnimalID int
	Start    time.Time
	End      time.Time
}

// GetReadingsChartDeps holds dependencies for the readings chart projection.
type GetReadingsChartDeps struct {
	API ReadingsChartSource
	Now func() time.Time
	Loc *time.Location // nil is UTC
}

// ChartPoint is one plotted sample.
type ChartPoint struct {
	At        time.Time `json:"at"`
	Magnitude float64   `json:"magnitude"`
}

// ReadingsChartResult carries the chart series and its reference lines.
type ReadingsChartResult struct {
	Points      []ChartPoint         `json:"points"`
	Hourly      []reading.HourBucket `json:"hourly"`
	Summary     reading.Summary      `json:"summary"`
	HasBaseline bool                 `json:"has_baseline"`
	Baseline    float64              `json:"baseline"`
	UpperLimit  float64              `json:"upper_limit"`
}

// QueryGetReadingsChart loads readings for a range of up to five days and
// the animal's main baseline.
// PRE: none
// POST: Points are in time order; a rejected range returns *period.Error
func QueryGetReadingsChart(ctx context.Context, q GetReadingsChartQuery, deps GetReadingsChartDeps) (ReadingsChartResult, error) {
	if q.AnimalID == 0 {
		return ReadingsChartResult{}, baseline.ErrAnimalRequired
	}
	if q.Start.IsZero() || q.End.IsZero() {
		return ReadingsChartResult{}, baseline.ErrPeriodRequired
	}
	opts := period.ReadingsOptions()
	opts.Now = deps.Now()
	if err := period.Check(q.Start, q.End, opts); err != nil {
		return ReadingsChartResult{}, err
	}

	from, to := reading.Window(q.Start, q.End, deps.Loc)
	readings, err := deps.API.ListReadings(ctx, api.ReadingsQuery{AnimalID: q.AnimalID, From: from, To: to})
	if err != nil {
		return ReadingsChartResult{}, fmt.Errorf("list readings: %w", err)
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].CollectedAt.Before(readings[j].CollectedAt)
	})

	result := ReadingsChartResult{
		Points:  make([]ChartPoint, len(readings)),
		Hourly:  reading.Hourly(readings, q.Start, q.End, deps.Loc),
		Summary: reading.Summarize(readings),
	}
	for i, r := range readings {
		result.Points[i] = ChartPoint{At: r.CollectedAt, Magnitude: r.Magnitude()}
	}

	rows, err := deps.API.ListBaselines(ctx, q.AnimalID)
	if err != nil {
		return ReadingsChartResult{}, fmt.Errorf("list baselines: %w", err)
	}
	if main, ok := baseline.Main(rows); ok {
		result.HasBaseline = true
		result.Baseline = main.BaselineENMO
		result.UpperLimit = main.UpperLimit()
	}
	return result, nil
}
