package projections

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dairysense/internal/domain/alert"
)

// GetAlertsDeps holds dependencies for the alert list projection.
type GetAlertsDeps struct {
	API AlertSource
	Now func() time.Time
}

// AlertRow is one alert as listed.
type AlertRow struct {
	alert.Alert
	TimeAgo string
}

// QueryGetAlerts lists alerts with animal names, newest first.
// PRE: none
// POST: every row has an AnimalName and TimeAgo
func QueryGetAlerts(ctx context.Context, f alert.Filter, deps GetAlertsDeps) ([]AlertRow, error) {
	alerts, err := deps.API.ListAlerts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	animals, err := deps.API.ListAnimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list animals: %w", err)
	}

	decorated := alert.Decorate(alerts, animals)
	sort.SliceStable(decorated, func(i, j int) bool {
		return decorated[i].DetectedAt.After(decorated[j].DetectedAt)
	})

	now := deps.Now()
	rows := make([]AlertRow, len(decorated))
	for i, a := range decorated {
		rows[i] = AlertRow{Alert: a, TimeAgo: alert.TimeAgo(a.DetectedAt, now)}
	}
	return rows, nil
}
