package web

import (
	"context"
	"embed"
	"net/http"
	"time"

	"dairysense/internal/adapters/api"
	"dairysense/internal/adapters/http/middleware"
	"dairysense/internal/adapters/http/perf"
	auditStore "dairysense/internal/adapters/storage/audit"
	outboxStore "dairysense/internal/adapters/storage/outbox"
	sessionStore "dairysense/internal/adapters/storage/session"
	"dairysense/internal/application/orchestrators"
	"dairysense/internal/application/projections"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Upstream is the DairySense API as one operator sees it.
type Upstream interface {
	projections.Console
	orchestrators.AnimalAPI
	orchestrators.DeviceAPI
	orchestrators.UserAPI
	orchestrators.AssignmentAPI
	orchestrators.BaselineAPI
}

var _ Upstream = (*api.Session)(nil)

// Pinger reports whether the local database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds everything the handlers use.
type Deps struct {
	Auth      orchestrators.Authenticator
	Connect   func(token string) Upstream
	Sessions  sessionStore.Store
	Audit     auditStore.Store
	Outbox    outboxStore.Store
	Processor *orchestrators.OutboxProcessor // nil disables outbox actions
	Collector *perf.Collector
	DB        Pinger

	SessionTTL    time.Duration
	Loc           *time.Location // operator's zone for day boundaries; nil is UTC
	SecureCookies bool
}

// Connector adapts an API client to Deps.Connect.
func Connector(c *api.Client) func(token string) Upstream {
	return func(token string) Upstream {
		return c.Session(token)
	}
}

// Options configures the middleware chain.
type Options struct {
	CSRFKey            []byte // 32 bytes
	TrustedOrigins     []string
	RateLimitPerSecond int
}

// Global dependencies (set by NewMux)
var app *Deps

// NewMux wires HTTP handlers for the console. The context bounds background
// goroutines owned by the middleware.
func NewMux(ctx context.Context, d *Deps, opts Options) http.Handler {
	app = d

	mux := http.NewServeMux()
	registerRoutes(mux)

	rate := opts.RateLimitPerSecond
	if rate <= 0 {
		rate = 20
	}
	limiter := middleware.NewRateLimiter(ctx, rate, time.Second)

	// Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.Recover,
		middleware.Timing(d.Collector),
		middleware.RateLimit(limiter),
		middleware.Auth(d.Sessions),
		middleware.CSRF(opts.CSRFKey, middleware.CSRFOptions{
			Secure:         d.SecureCookies,
			TrustedOrigins: opts.TrustedOrigins,
		}),
		middleware.SecurityHeaders,
	)
}

func registerRoutes(mux *http.ServeMux) {
	mux.Handle("/static/", http.FileServerFS(staticFS))
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/login", handleLogin)
	mux.HandleFunc("/", handleRoot)

	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.RequireAuth(h))
	}
	protect("/logout", handleLogout)
	protect("/dashboard", handleDashboard)

	protect("/animals", handleAnimals)
	protect("/animals/delete", handleAnimalDelete)
	protect("/devices", handleDevices)
	protect("/devices/delete", handleDeviceDelete)
	protect("/users", handleUsers)
	protect("/users/delete", handleUserDelete)

	protect("/device-animals", handleDeviceAnimals)
	protect("/device-animals/delete", handleDeviceAnimalDelete)
	protect("/api/device-animals/available", handleAvailability)

	protect("/readings", handleReadings)
	protect("/baselines", handleBaselines)
	protect("/baselines/list", handleBaselineList)
	protect("/baselines/delete", handleBaselineDelete)
	protect("/alerts", handleAlerts)

	protect("/admin/audit-trail", handleAdminAuditTrail)
	protect("/admin/outbox", handleAdminOutbox)
	protect("/admin/outbox/", handleAdminOutbox)
	protect("/admin/perf", handleAdminPerf)
}
