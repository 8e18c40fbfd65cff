package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/outbox"
)

// AlertWatermarkName is the watermark row used by the alert notifier.
const AlertWatermarkName = "alerts"

// alertLookback bounds how far back each poll asks the API for alerts.
const alertLookback = 7 * 24 * time.Hour

// AlertSource lists alerts and the animals they refer to.
type AlertSource interface {
	ListAlerts(ctx context.Context, f alert.Filter) ([]alert.Alert, error)
	ListAnimals(ctx context.Context) ([]animal.Animal, error)
}

// Watermarks persists the highest alert id already queued.
type Watermarks interface {
	Get(ctx context.Context, name string) (id int, ok bool, err error)
	Advance(ctx context.Context, name string, id int) error
}

// OutboxQueue accepts new outbox entries.
type OutboxQueue interface {
	Enqueue(ctx context.Context, e outbox.Entry) (bool, error)
}

// AlertEmailPayload is the outbox payload for an alert email.
type AlertEmailPayload struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Markdown string   `json:"markdown"`
}

// AlertSlackPayload is the outbox payload for an alert Slack post.
type AlertSlackPayload struct {
	Text     string `json:"text"`
	Markdown string `json:"markdown"`
}

// NotifyAlertsDeps holds dependencies for NotifyAlerts.
type NotifyAlertsDeps struct {
	Source     AlertSource
	Watermarks Watermarks
	Outbox     OutboxQueue
	Recipients []string // email recipients; empty disables email
	Slack      bool
	Now        func() time.Time
}

// NotifyAlertsResult summarizes one poll.
type NotifyAlertsResult struct {
	New    int
	Queued int
	Seeded bool
}

// ExecuteNotifyAlerts queues one notification per channel for every alert
// newer than the watermark, then advances the watermark.
// On the first run the watermark is seeded to the newest alert (0 when there
// are none) without notifying, so historic alerts are not replayed.
// PRE: none
// POST: Every alert id <= the new watermark has its entries queued
// INVARIANT: Dedup keys make repeated polls idempotent
func ExecuteNotifyAlerts(ctx context.Context, deps NotifyAlertsDeps) (NotifyAlertsResult, error) {
	now := deps.Now()
	mark, seeded, err := deps.Watermarks.Get(ctx, AlertWatermarkName)
	if err != nil {
		return NotifyAlertsResult{}, fmt.Errorf("get watermark: %w", err)
	}

	alerts, err := deps.Source.ListAlerts(ctx, alert.Filter{StartDate: now.Add(-alertLookback)})
	if err != nil {
		return NotifyAlertsResult{}, fmt.Errorf("list alerts: %w", err)
	}

	if !seeded {
		top := alert.MaxID(alerts)
		if err := deps.Watermarks.Advance(ctx, AlertWatermarkName, top); err != nil {
			return NotifyAlertsResult{}, fmt.Errorf("seed watermark: %w", err)
		}
		slog.Info("alert_watermark_seeded", "last_id", top)
		return NotifyAlertsResult{Seeded: true}, nil
	}

	fresh := alert.Newer(alerts, mark)
	if len(fresh) == 0 {
		return NotifyAlertsResult{}, nil
	}

	animals, err := deps.Source.ListAnimals(ctx)
	if err != nil {
		return NotifyAlertsResult{}, fmt.Errorf("list animals: %w", err)
	}
	fresh = alert.Decorate(fresh, animals)

	result := NotifyAlertsResult{New: len(fresh)}
	for _, a := range fresh {
		entries, err := alertEntries(a, deps.Recipients, deps.Slack, now)
		if err != nil {
			return result, err
		}
		for _, e := range entries {
			inserted, err := deps.Outbox.Enqueue(ctx, e)
			if err != nil {
				return result, fmt.Errorf("enqueue %s: %w", e.DedupKey, err)
			}
			if inserted {
				result.Queued++
			}
		}
	}

	if err := deps.Watermarks.Advance(ctx, AlertWatermarkName, alert.MaxID(fresh)); err != nil {
		return result, fmt.Errorf("advance watermark: %w", err)
	}
	slog.Info("alert_notify_queued", "new", result.New, "queued", result.Queued, "last_id", alert.MaxID(fresh))
	return result, nil
}

func alertEntries(a alert.Alert, recipients []string, slack bool, now time.Time) ([]outbox.Entry, error) {
	id := strconv.Itoa(a.ID)
	var entries []outbox.Entry

	if len(recipients) > 0 {
		payload, err := json.Marshal(AlertEmailPayload{
			To:       recipients,
			Subject:  "Heat alert: " + a.AnimalName,
			Markdown: alertEmailMarkdown(a),
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, outbox.NewEntry(outbox.ActionTypeAlertEmail, "alert:"+id+":email", string(payload), now))
	}
	if slack {
		payload, err := json.Marshal(AlertSlackPayload{
			Text:     "Heat alert for " + a.AnimalName,
			Markdown: alertSlackMarkdown(a),
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, outbox.NewEntry(outbox.ActionTypeAlertSlack, "alert:"+id+":slack", string(payload), now))
	}
	return entries, nil
}

const alertTimeLayout = "2006-01-02 15:04 MST"

func alertEmailMarkdown(a alert.Alert) string {
	return fmt.Sprintf("## Heat alert: %s\n\n| Detected | Z-score |\n| --- | --- |\n| %s | %.2f |\n",
		a.AnimalName, a.DetectedAt.UTC().Format(alertTimeLayout), a.ZScore)
}

// alertSlackMarkdown uses Slack mrkdwn, where *x* is bold.
func alertSlackMarkdown(a alert.Alert) string {
	return fmt.Sprintf("*Heat alert* for *%s*\nDetected %s, z-score %.2f",
		a.AnimalName, a.DetectedAt.UTC().Format(alertTimeLayout), a.ZScore)
}

// StartAlertPoller runs ExecuteNotifyAlerts every interval until ctx is done.
// PRE: interval > 0
func StartAlertPoller(ctx context.Context, deps NotifyAlertsDeps, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pollCtx, cancel := context.WithTimeout(ctx, interval)
				if _, err := ExecuteNotifyAlerts(pollCtx, deps); err != nil {
					slog.Error("alert_poll_failed", "error", err.Error())
				}
				cancel()
			case <-ctx.Done():
				slog.Info("alert_poller_stopped")
				return
			}
		}
	}()
}
