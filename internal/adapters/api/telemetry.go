package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/reading"
)

// ReadingsQuery selects readings for one animal between two instants.
type ReadingsQuery struct {
	AnimalID int
	From     time.Time
	To       time.Time
}

// ListReadings returns raw accelerometer samples.
func (s *Session) ListReadings(ctx context.Context, q ReadingsQuery) ([]reading.Reading, error) {
	params := url.Values{}
	params.Set("animal_id", strconv.Itoa(q.AnimalID))
	params.Set("start_date", q.From.UTC().Format(timestampLayout))
	params.Set("end_date", q.To.UTC().Format(timestampLayout))

	var out []readingDTO
	if err := s.get(ctx, "/readings", params, &out); err != nil {
		return nil, err
	}
	readings := make([]reading.Reading, len(out))
	for i, r := range out {
		readings[i] = r.domain()
	}
	return readings, nil
}

func baselinesPath(animalID int) string {
	return "/animals/" + strconv.Itoa(animalID) + "/activity_baselines"
}

func periodParams(start, end time.Time) url.Values {
	params := url.Values{}
	params.Set("start", period.FormatDate(start))
	params.Set("end", period.FormatDate(end))
	return params
}

// ListBaselines returns every hourly baseline row for an animal.
func (s *Session) ListBaselines(ctx context.Context, animalID int) ([]baseline.Baseline, error) {
	var out []baselineDTO
	if err := s.get(ctx, baselinesPath(animalID), nil, &out); err != nil {
		return nil, err
	}
	rows := make([]baseline.Baseline, len(out))
	for i, b := range out {
		rows[i] = b.domain()
		if rows[i].AnimalID == 0 {
			rows[i].AnimalID = animalID
		}
	}
	return rows, nil
}

// CreateBaseline asks the API to compute a baseline over [start, end].
func (s *Session) CreateBaseline(ctx context.Context, animalID int, start, end time.Time, window int) error {
	params := periodParams(start, end)
	params.Set("window", strconv.Itoa(window))
	return s.send(ctx, http.MethodPost, baselinesPath(animalID), params, nil, nil)
}

// DeleteBaseline removes the baseline computed over [start, end].
func (s *Session) DeleteBaseline(ctx context.Context, animalID int, start, end time.Time) error {
	return s.send(ctx, http.MethodDelete, baselinesPath(animalID), periodParams(start, end), nil, nil)
}

// ListAlerts returns alerts matching the filter.
func (s *Session) ListAlerts(ctx context.Context, f alert.Filter) ([]alert.Alert, error) {
	var out []alertDTO
	if err := s.get(ctx, "/alerts", f.Query(), &out); err != nil {
		return nil, err
	}
	alerts := make([]alert.Alert, len(out))
	for i, a := range out {
		alerts[i] = a.domain()
	}
	return alerts, nil
}

// DashboardStats returns the headline counters.
func (s *Session) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var out DashboardStats
	err := s.get(ctx, "/dashboard/stats", nil, &out)
	return out, err
}
