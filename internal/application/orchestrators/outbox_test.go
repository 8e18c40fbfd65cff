package orchestrators

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dairysense/internal/adapters/email"
	"dairysense/internal/adapters/slack"
	"dairysense/internal/domain/audit"
	"dairysense/internal/domain/outbox"
)

func newTestProcessor(box *memOutbox, exec ActionExecutor, now *time.Time) *OutboxProcessor {
	p := NewOutboxProcessor(box, map[string]ActionExecutor{outbox.ActionTypeAlertEmail: exec})
	p.now = func() time.Time { return *now }
	return p
}

func enqueue(t *testing.T, box *memOutbox, actionType, key string) outbox.Entry {
	t.Helper()
	e := outbox.NewEntry(actionType, key, `{"to":["a@b.co"],"subject":"s","markdown":"m"}`, testTime)
	if _, err := box.Enqueue(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	return e
}

// TestOutboxProcessor_RetriesWithBackoff verifies failed attempts wait before retrying.
func TestOutboxProcessor_RetriesWithBackoff(t *testing.T) {
	box, exec := newMemOutbox(), &fakeExecutor{failures: 1}
	now := testTime
	p := newTestProcessor(box, exec, &now)
	e := enqueue(t, box, outbox.ActionTypeAlertEmail, "alert:1:email")

	if err := p.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, _ := box.GetByID(context.Background(), e.ID)
	if got.Status != outbox.StatusRetrying || got.Attempts != 1 || got.ErrorMessage != errDelivery.Error() {
		t.Fatalf("after failure = %+v", got)
	}

	// Backoff after one attempt is 60s.
	now = testTime.Add(30 * time.Second)
	_ = p.ProcessPending(context.Background())
	if exec.calls != 1 {
		t.Fatalf("retried during backoff, calls = %d", exec.calls)
	}

	now = testTime.Add(61 * time.Second)
	_ = p.ProcessPending(context.Background())
	got, _ = box.GetByID(context.Background(), e.ID)
	if got.Status != outbox.StatusDone || got.ExternalID != "ext-1" || got.Attempts != 2 {
		t.Errorf("after success = %+v", got)
	}
}

// TestOutboxProcessor_ExhaustsAttempts verifies entries end up failed.
func TestOutboxProcessor_ExhaustsAttempts(t *testing.T) {
	box, exec := newMemOutbox(), &fakeExecutor{failures: 100}
	now := testTime
	p := newTestProcessor(box, exec, &now)
	e := enqueue(t, box, outbox.ActionTypeAlertEmail, "alert:2:email")

	for i := 0; i < outbox.DefaultMaxAttempts+2; i++ {
		_ = p.ProcessPending(context.Background())
		now = now.Add(2 * time.Hour)
	}
	got, _ := box.GetByID(context.Background(), e.ID)
	if got.Status != outbox.StatusFailed || got.Attempts != outbox.DefaultMaxAttempts {
		t.Errorf("entry = %+v", got)
	}

	// An operator retry grants one more attempt.
	exec.failures = 0
	if err := p.ProcessSingle(context.Background(), e.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = box.GetByID(context.Background(), e.ID)
	if got.Status != outbox.StatusDone {
		t.Errorf("after manual retry = %+v", got)
	}
	if err := p.ProcessSingle(context.Background(), e.ID); !errors.Is(err, outbox.ErrTerminal) {
		t.Errorf("retry of done entry = %v", err)
	}
}

// TestOutboxProcessor_UnknownAction verifies entries without an executor fail.
func TestOutboxProcessor_UnknownAction(t *testing.T) {
	box := newMemOutbox()
	now := testTime
	p := newTestProcessor(box, &fakeExecutor{}, &now)
	e := enqueue(t, box, "carrier_pigeon", "x")

	_ = p.ProcessPending(context.Background())
	got, _ := box.GetByID(context.Background(), e.ID)
	if !strings.Contains(got.ErrorMessage, "carrier_pigeon") || got.Attempts != 1 {
		t.Errorf("entry = %+v", got)
	}
}

// TestOutboxActions verifies admin retry and abandon are audited.
func TestOutboxActions(t *testing.T) {
	box, rec := newMemOutbox(), &memAudit{}
	now := testTime
	p := newTestProcessor(box, &fakeExecutor{failures: 100}, &now)
	deps := OutboxActionDeps{Processor: p, Audit: rec}
	e := enqueue(t, box, outbox.ActionTypeAlertEmail, "alert:3:email")

	if err := ExecuteRetryOutboxEntry(context.Background(), e.ID, testActor, deps); err != nil {
		t.Fatal(err)
	}
	if err := ExecuteAbandonOutboxEntry(context.Background(), e.ID, testActor, deps); err != nil {
		t.Fatal(err)
	}
	got, _ := box.GetByID(context.Background(), e.ID)
	if got.Status != outbox.StatusAbandoned {
		t.Errorf("status = %s", got.Status)
	}
	if len(rec.events) != 2 || rec.events[0].Action != audit.ActionRetry || rec.events[1].Action != audit.ActionAbandon {
		t.Errorf("events = %+v", rec.events)
	}
	if err := ExecuteRetryOutboxEntry(context.Background(), e.ID, testActor, deps); !errors.Is(err, outbox.ErrTerminal) {
		t.Errorf("retry abandoned = %v", err)
	}
}

// TestAlertEmailExecutor verifies Markdown is rendered to HTML.
func TestAlertEmailExecutor(t *testing.T) {
	sender := email.NewNoopSender()
	exec := &AlertEmailExecutor{Sender: sender, From: "alerts@farm.io"}

	id, err := exec.Execute(context.Background(), `{"to":["vet@farm.io"],"subject":"Heat alert: Bella","markdown":"## Heat alert: Bella"}`)
	if err != nil {
		t.Fatal(err)
	}
	sent := sender.Sent()
	if id == "" || len(sent) != 1 {
		t.Fatalf("id = %q, sent = %d", id, len(sent))
	}
	if !strings.Contains(sent[0].HTML, "<h2>Heat alert: Bella</h2>") || sent[0].From != "alerts@farm.io" {
		t.Errorf("request = %+v", sent[0])
	}

	if _, err := exec.Execute(context.Background(), "not json"); err == nil {
		t.Error("expected payload error")
	}
}

type fakePoster struct {
	got slack.Message
}

func (f *fakePoster) Post(_ context.Context, msg slack.Message) (string, error) {
	f.got = msg
	return "1700000000.000100", nil
}

// TestAlertSlackExecutor verifies the payload reaches the poster.
func TestAlertSlackExecutor(t *testing.T) {
	poster := &fakePoster{}
	ts, err := (&AlertSlackExecutor{Poster: poster}).Execute(context.Background(), `{"text":"Heat alert for Bella","markdown":"*Heat alert*"}`)
	if err != nil || ts != "1700000000.000100" {
		t.Fatalf("Execute = %q, %v", ts, err)
	}
	if poster.got.Text != "Heat alert for Bella" || poster.got.Markdown != "*Heat alert*" {
		t.Errorf("message = %+v", poster.got)
	}
}
