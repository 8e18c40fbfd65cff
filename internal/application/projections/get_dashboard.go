package projections

import (
	"context"
	"fmt"
	"time"

	"dairysense/internal/adapters/api"
	"dairysense/internal/domain/alert"
)

// recentAlertCount is how many alerts the dashboard lists.
const recentAlertCount = 5

// DashboardSource is what the dashboard reads.
type DashboardSource interface {
	StatsSource
	AlertSource
}

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	API DashboardSource
	Now func() time.Time
}

// DashboardResult carries the output of the dashboard projection.
type DashboardResult struct {
	Stats        api.DashboardStats
	RecentAlerts []AlertRow
}

// QueryGetDashboard loads the counters and the latest alerts.
// PRE: none
// POST: RecentAlerts holds at most five alerts, newest first
func QueryGetDashboard(ctx context.Context, deps GetDashboardDeps) (DashboardResult, error) {
	stats, err := deps.API.DashboardStats(ctx)
	if err != nil {
		return DashboardResult{}, fmt.Errorf("dashboard stats: %w", err)
	}
	rows, err := QueryGetAlerts(ctx, alert.Filter{}, GetAlertsDeps{API: deps.API, Now: deps.Now})
	if err != nil {
		return DashboardResult{}, err
	}
	if len(rows) > recentAlertCount {
		rows = rows[:recentAlertCount]
	}
	return DashboardResult{Stats: stats, RecentAlerts: rows}, nil
}
