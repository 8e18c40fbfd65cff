// Package baseline models the hourly activity baselines computed by the API.
package baseline

import (
	"errors"
	"sort"
	"time"

	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/period"
)

// Domain errors
var (
	ErrAnimalRequired  = errors.New("select an animal")
	ErrPeriodRequired  = errors.New("select a start and end date")
	ErrPreviewRequired = errors.New("preview the data before creating the baseline")
	ErrNoReadings      = errors.New("no readings found for the selected period")
)

// DefaultWindow is the smoothing window, in minutes, requested on creation.
const DefaultWindow = 10

// MADMultiplier scales the median absolute deviation into the alert threshold.
const MADMultiplier = 3

// Baseline is one hourly row of an activity baseline.
type Baseline struct {
	ID           int
	AnimalID     int
	Hour         int
	BaselineENMO float64
	MADENMO      float64
	PeriodStart  time.Time
	PeriodEnd    time.Time
	CreatedAt    time.Time
}

// Period is all hourly rows that share a reference period, for one animal.
type Period struct {
	AnimalID      int
	AnimalName    string
	AnimalEarring string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	CreatedAt     time.Time
	HoursCount    int
}

// Group collapses hourly rows into reference periods.
// The earliest-seen CreatedAt of each period is kept.
// PRE: rows belong to a
// POST: one Period per distinct (PeriodStart, PeriodEnd), in first-seen order
func Group(a animal.Animal, rows []Baseline) []Period {
	type key struct{ start, end string }
	idx := make(map[key]int)
	var out []Period
	earring := a.Earring
	if earring == "" {
		earring = "-"
	}
	for _, b := range rows {
		k := key{period.FormatDate(b.PeriodStart), period.FormatDate(b.PeriodEnd)}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Period{
				AnimalID:      a.ID,
				AnimalName:    a.Name,
				AnimalEarring: earring,
				PeriodStart:   b.PeriodStart,
				PeriodEnd:     b.PeriodEnd,
				CreatedAt:     b.CreatedAt,
			})
		}
		out[i].HoursCount++
	}
	return out
}

// SortNewestFirst orders periods by CreatedAt descending.
func SortNewestFirst(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].CreatedAt.After(periods[j].CreatedAt)
	})
}

// Main returns the row with the highest positive BaselineENMO.
// POST: ok is false when no row has a positive baseline
func Main(rows []Baseline) (Baseline, bool) {
	var best Baseline
	found := false
	for _, b := range rows {
		if b.BaselineENMO <= 0 {
			continue
		}
		if !found || b.BaselineENMO > best.BaselineENMO {
			best = b
			found = true
		}
	}
	return best, found
}

// UpperLimit is the activity level above which a reading counts as anomalous.
func (b Baseline) UpperLimit() float64 {
	return b.BaselineENMO + MADMultiplier*b.MADENMO
}
