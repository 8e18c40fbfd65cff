package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dairysense/internal/adapters/email"
	"dairysense/internal/adapters/slack"
	outboxStore "dairysense/internal/adapters/storage/outbox"
	"dairysense/internal/domain/audit"
	domain "dairysense/internal/domain/outbox"
)

// ErrNoExecutor is recorded on entries whose action type has no executor.
var ErrNoExecutor = errors.New("no executor registered for action type")

// OutboxProcessor delivers queued notifications with exponential backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	executors map[string]ActionExecutor
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	now       func() time.Time
}

// ActionExecutor executes a specific type of external action.
type ActionExecutor interface {
	// Execute runs the external action with the given payload.
	// Returns the external ID (provider message id, Slack ts) and any error.
	Execute(ctx context.Context, payload string) (string, error)
}

// NewOutboxProcessor creates a new outbox processor.
func NewOutboxProcessor(store outboxStore.Store, executors map[string]ActionExecutor) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		executors: executors,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 10,
		now:       time.Now,
	}
}

// ProcessPending attempts every due entry in one batch.
// PRE: Context is valid
// POST: Attempted entries are saved with their new status
func (p *OutboxProcessor) ProcessPending(ctx context.Context) error {
	entries, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("list pending outbox entries: %w", err)
	}

	now := p.now()
	for _, entry := range entries {
		if now.Before(entry.DueAt(p.baseDelay, p.maxDelay)) {
			continue
		}
		if err := p.attempt(ctx, entry); err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "action_type", entry.ActionType, "error", err.Error())
		}
	}
	return nil
}

func (p *OutboxProcessor) attempt(ctx context.Context, entry domain.Entry) error {
	executor, ok := p.executors[entry.ActionType]
	entry.MarkAttempt(p.now())
	if !ok {
		entry.MarkFailed(fmt.Errorf("%w: %s", ErrNoExecutor, entry.ActionType))
		return p.store.Save(ctx, entry)
	}

	externalID, err := executor.Execute(ctx, entry.Payload)
	if err != nil {
		entry.MarkFailed(err)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err.Error())
	} else {
		entry.MarkSuccess(externalID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "action_type", entry.ActionType, "external_id", externalID)
	}
	return p.store.Save(ctx, entry)
}

// ProcessSingle attempts one entry now, ignoring backoff. A failed entry
// that exhausted its attempts is granted one more.
// PRE: entryID is non-empty
// POST: Entry is attempted and saved
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	switch entry.Status {
	case domain.StatusDone, domain.StatusAbandoned:
		return domain.ErrTerminal
	case domain.StatusFailed:
		if entry.MaxAttempts <= entry.Attempts {
			entry.MaxAttempts = entry.Attempts + 1
		}
	}
	return p.attempt(ctx, entry)
}

// AbandonEntry stops any further attempts on an entry.
// PRE: entryID is non-empty
// POST: Entry status set to abandoned unless already delivered
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.Status == domain.StatusDone {
		return domain.ErrTerminal
	}
	entry.MarkAbandoned()
	return p.store.Save(ctx, entry)
}

// OutboxActionDeps holds dependencies for the admin outbox actions.
type OutboxActionDeps struct {
	Processor *OutboxProcessor
	Audit     AuditRecorder
}

// ExecuteRetryOutboxEntry retries an entry on an operator's request.
func ExecuteRetryOutboxEntry(ctx context.Context, entryID string, actor Actor, deps OutboxActionDeps) error {
	if err := deps.Processor.ProcessSingle(ctx, entryID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryNotification, audit.ActionRetry).
		WithDescription("Outbox entry "+entryID))
	return nil
}

// ExecuteAbandonOutboxEntry abandons an entry on an operator's request.
func ExecuteAbandonOutboxEntry(ctx context.Context, entryID string, actor Actor, deps OutboxActionDeps) error {
	if err := deps.Processor.AbandonEntry(ctx, entryID); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryNotification, audit.ActionAbandon).
		WithSeverity(audit.SeverityWarning).
		WithDescription("Outbox entry "+entryID))
	return nil
}

// --- Alert Email Executor ---

// AlertEmailExecutor renders the Markdown body and sends it.
type AlertEmailExecutor struct {
	Sender  email.Sender
	From    string
	ReplyTo string
}

// Execute sends an alert email from the payload.
// PRE: payload is valid JSON matching AlertEmailPayload
// POST: Returns the provider message id
// INVARIANT: outbox entry status managed by caller
func (e *AlertEmailExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p AlertEmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	html, err := email.RenderMarkdown(p.Markdown)
	if err != nil {
		return "", err
	}
	res, err := e.Sender.Send(ctx, email.SendRequest{
		To:      p.To,
		From:    e.From,
		Subject: p.Subject,
		HTML:    html,
		Text:    p.Markdown,
		ReplyTo: e.ReplyTo,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// --- Alert Slack Executor ---

// AlertSlackExecutor posts alerts to the configured channel.
type AlertSlackExecutor struct {
	Poster slack.Poster
}

// Execute posts an alert from the payload.
// PRE: payload is valid JSON matching AlertSlackPayload
// POST: Returns the message timestamp
func (e *AlertSlackExecutor) Execute(ctx context.Context, payload string) (string, error) {
	var p AlertSlackPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	return e.Poster.Post(ctx, slack.Message{Text: p.Text, Markdown: p.Markdown})
}

// --- Background Worker ---

// StartBackgroundWorker processes pending outbox entries every interval
// until ctx is done.
// PRE: interval > 0
func StartBackgroundWorker(ctx context.Context, processor *OutboxProcessor, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				if err := processor.ProcessPending(runCtx); err != nil {
					slog.Error("outbox_background_process_failed", "error", err.Error())
				}
				cancel()
			case <-ctx.Done():
				slog.Info("outbox_background_worker_stopped")
				return
			}
		}
	}()
}
