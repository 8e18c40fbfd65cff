package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"dairysense/internal/adapters/api"
	emailPkg "dairysense/internal/adapters/email"
	web "dairysense/internal/adapters/http"
	"dairysense/internal/adapters/http/perf"
	slackPkg "dairysense/internal/adapters/slack"
	"dairysense/internal/adapters/storage"
	auditStore "dairysense/internal/adapters/storage/audit"
	outboxStorePkg "dairysense/internal/adapters/storage/outbox"
	sessionStore "dairysense/internal/adapters/storage/session"
	watermarkStore "dairysense/internal/adapters/storage/watermark"
	"dairysense/internal/application/orchestrators"
	"dairysense/internal/config"
	"dairysense/internal/domain/outbox"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const (
	outboxInterval  = time.Minute
	sessionSweep    = 15 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	slog.SetDefault(cfg.Logger(os.Stderr))
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("sqlite", storage.DSN(cfg.DBPath))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// WAL allows concurrent readers alongside the single writer.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	sessions := sessionStore.NewSQLiteStore(timedDB, cfg.SessionSecret())
	audits := auditStore.NewSQLiteStore(timedDB)
	outboxStore := outboxStorePkg.NewSQLiteStore(timedDB)

	client := api.NewClient(cfg.APIURL, time.Duration(cfg.UpstreamTimeout), collector)

	executors := map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeAlertEmail: &orchestrators.AlertEmailExecutor{
			Sender:  emailSender(cfg),
			From:    cfg.Email.From,
			ReplyTo: cfg.Email.ReplyTo,
		},
	}
	slackEnabled := cfg.Slack.Token != "" && cfg.Slack.Channel != ""
	if slackEnabled {
		executors[outbox.ActionTypeAlertSlack] = &orchestrators.AlertSlackExecutor{
			Poster: slackPkg.NewNotifier(cfg.Slack.Token, cfg.Slack.Channel),
		}
	}
	processor := orchestrators.NewOutboxProcessor(outboxStore, executors)
	orchestrators.StartBackgroundWorker(ctx, processor, outboxInterval)

	if cfg.Alerts.Enabled {
		orchestrators.StartAlertPoller(ctx, orchestrators.NotifyAlertsDeps{
			Source:     api.NewServiceAccount(client, cfg.Alerts.ServiceEmail, cfg.Alerts.ServicePassword),
			Watermarks: watermarkStore.NewSQLiteStore(timedDB),
			Outbox:     outboxStore,
			Recipients: cfg.Alerts.Recipients,
			Slack:      slackEnabled,
			Now:        time.Now,
		}, time.Duration(cfg.Alerts.PollInterval))
		slog.Info("alert_poller_started", "interval", time.Duration(cfg.Alerts.PollInterval).String(),
			"recipients", len(cfg.Alerts.Recipients), "slack", slackEnabled)
	}

	go sweepSessions(ctx, sessions)

	handler := web.NewMux(ctx, &web.Deps{
		Auth:          client,
		Connect:       web.Connector(client),
		Sessions:      sessions,
		Audit:         audits,
		Outbox:        outboxStore,
		Processor:     processor,
		Collector:     collector,
		DB:            timedDB,
		SessionTTL:    time.Duration(cfg.SessionTTL),
		SecureCookies: cfg.IsProduction(),
		Loc:           loc,
	}, web.Options{
		CSRFKey:            cfg.CSRFAuthKey(),
		TrustedOrigins:     cfg.TrustedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server_shutdown_failed", "error", err.Error())
		}
	}()

	slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env,
		"timezone", loc.String(), "api_url", client.BaseURL(), "schema", storage.LatestSchemaVersion())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	slog.Info("server_stopped")
}

func emailSender(cfg config.Config) emailPkg.Sender {
	if cfg.Email.ResendKey != "" {
		slog.Info("email_sender_configured", "provider", "resend")
		return emailPkg.NewResendSender(cfg.Email.ResendKey, cfg.Email.From, cfg.Email.ReplyTo)
	}
	if cfg.IsProduction() && cfg.Alerts.Enabled && len(cfg.Alerts.Recipients) > 0 {
		slog.Warn("email_delivery_disabled", "reason", "email.resend_key is not set")
	}
	return emailPkg.NewNoopSender()
}

// sweepSessions removes expired sessions until ctx is done.
func sweepSessions(ctx context.Context, store sessionStore.Store) {
	ticker := time.NewTicker(sessionSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				slog.Error("session_sweep_failed", "error", err.Error())
				continue
			}
			if n > 0 {
				slog.Debug("session_sweep", "deleted", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
