// Package config loads console settings from an optional TOML file and
// DAIRYSENSE_* environment variables. Environment values win.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve on hosts without a zoneinfo database

	"github.com/pelletier/go-toml/v2"
	"github.com/sosodev/duration"

	"dairysense/internal/adapters/api"
)

// DefaultPath is read when DAIRYSENSE_CONFIG is unset. A missing file is not an error.
const DefaultPath = "dairysense.toml"

// Errors returned by Validate.
var (
	ErrMissingCSRFKey    = errors.New("csrf_key is required in production")
	ErrMissingSessionKey = errors.New("session_key is required in production")
	ErrShortKey          = errors.New("keys must be at least 32 characters")
	ErrBadInterval       = errors.New("intervals must be positive")
	ErrNoAlertChannel    = errors.New("alerts are enabled but neither email recipients nor a slack channel is set")
	ErrNoServiceAccount  = errors.New("alerts are enabled but alerts.service_email/service_password are not set")
	ErrBadLogLevel       = errors.New("log_level must be debug, info, warn or error")
	ErrBadTimezone       = errors.New("timezone must be an IANA zone name such as America/Sao_Paulo")
)

// Interval is a duration written as ISO 8601 ("PT5M"). Go syntax ("5m") is accepted too.
type Interval time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for go-toml.
func (i *Interval) UnmarshalText(b []byte) error {
	d, err := ParseInterval(string(b))
	if err != nil {
		return err
	}
	*i = Interval(d)
	return nil
}

// MarshalText renders the interval in ISO 8601.
func (i Interval) MarshalText() ([]byte, error) {
	return []byte(duration.Format(time.Duration(i))), nil
}

// ParseInterval parses an ISO 8601 duration, falling back to time.ParseDuration.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		d, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, fmt.Errorf("parse interval %q: %w", s, err)
		}
		return d.ToTimeDuration(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", s, err)
	}
	return d, nil
}

// Alerts configures the background alert notifier.
type Alerts struct {
	Enabled         bool     `toml:"enabled"`
	PollInterval    Interval `toml:"poll_interval"`
	Recipients      []string `toml:"recipients"`
	ServiceEmail    string   `toml:"service_email"`
	ServicePassword string   `toml:"service_password"`
}

// Email configures Resend delivery. An empty key selects the no-op sender.
type Email struct {
	ResendKey string `toml:"resend_key"`
	From      string `toml:"from"`
	ReplyTo   string `toml:"reply_to"`
}

// Slack configures alert posts. An empty token disables Slack.
type Slack struct {
	Token   string `toml:"token"`
	Channel string `toml:"channel"`
}

// Config is the full console configuration.
type Config struct {
	Addr               string   `toml:"addr"`
	Env                string   `toml:"env"`
	LogLevel           string   `toml:"log_level"`
	Timezone           string   `toml:"timezone"` // farm's zone for day boundaries; empty is the host zone
	APIURL             string   `toml:"api_url"`
	DBPath             string   `toml:"db_path"`
	CSRFKey            string   `toml:"csrf_key"`
	SessionKey         string   `toml:"session_key"`
	SessionTTL         Interval `toml:"session_ttl"`
	UpstreamTimeout    Interval `toml:"upstream_timeout"`
	RateLimitPerSecond int      `toml:"rate_limit_per_second"`
	TrustedOrigins     []string `toml:"trusted_origins"`
	Alerts             Alerts   `toml:"alerts"`
	Email              Email    `toml:"email"`
	Slack              Slack    `toml:"slack"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		Env:                "development",
		LogLevel:           "info",
		APIURL:             api.DefaultBaseURL,
		DBPath:             "dairysense.db",
		SessionTTL:         Interval(24 * time.Hour),
		UpstreamTimeout:    Interval(15 * time.Second),
		RateLimitPerSecond: 20,
		TrustedOrigins:     []string{"localhost:8080", "127.0.0.1:8080"},
		Alerts: Alerts{
			PollInterval: Interval(5 * time.Minute),
		},
		Email: Email{
			From: "DairySense <alerts@dairysense.local>",
		},
	}
}

// IsProduction reports whether env is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the TOML file named by DAIRYSENSE_CONFIG (or DefaultPath), then
// applies environment overrides, then fills development-only secrets.
// PRE: getenv is os.Getenv or a test stub
// POST: Returned config has passed Validate
func Load(getenv func(string) string) (Config, error) {
	cfg := Default()

	path := getenv("DAIRYSENSE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}

	if !cfg.IsProduction() {
		if cfg.CSRFKey == "" {
			cfg.CSRFKey = randomKey()
		}
		if cfg.SessionKey == "" {
			cfg.SessionKey = randomKey()
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	interval := func(key string, dst *Interval) error {
		if v := getenv(key); v != "" {
			d, err := ParseInterval(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = Interval(d)
		}
		return nil
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); v != "" {
			var out []string
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			*dst = out
		}
	}

	str("DAIRYSENSE_ADDR", &cfg.Addr)
	str("DAIRYSENSE_ENV", &cfg.Env)
	str("DAIRYSENSE_LOG_LEVEL", &cfg.LogLevel)
	str("DAIRYSENSE_TIMEZONE", &cfg.Timezone)
	str("DAIRYSENSE_API_URL", &cfg.APIURL)
	str("DAIRYSENSE_DB_PATH", &cfg.DBPath)
	str("DAIRYSENSE_CSRF_KEY", &cfg.CSRFKey)
	str("DAIRYSENSE_SESSION_KEY", &cfg.SessionKey)
	str("DAIRYSENSE_ALERTS_SERVICE_EMAIL", &cfg.Alerts.ServiceEmail)
	str("DAIRYSENSE_ALERTS_SERVICE_PASSWORD", &cfg.Alerts.ServicePassword)
	str("DAIRYSENSE_RESEND_KEY", &cfg.Email.ResendKey)
	str("DAIRYSENSE_EMAIL_FROM", &cfg.Email.From)
	str("DAIRYSENSE_REPLY_TO", &cfg.Email.ReplyTo)
	str("DAIRYSENSE_SLACK_TOKEN", &cfg.Slack.Token)
	str("DAIRYSENSE_SLACK_CHANNEL", &cfg.Slack.Channel)
	list("DAIRYSENSE_ALERTS_RECIPIENTS", &cfg.Alerts.Recipients)
	list("DAIRYSENSE_TRUSTED_ORIGINS", &cfg.TrustedOrigins)

	for key, dst := range map[string]*Interval{
		"DAIRYSENSE_SESSION_TTL":          &cfg.SessionTTL,
		"DAIRYSENSE_UPSTREAM_TIMEOUT":     &cfg.UpstreamTimeout,
		"DAIRYSENSE_ALERTS_POLL_INTERVAL": &cfg.Alerts.PollInterval,
	} {
		if err := interval(key, dst); err != nil {
			return err
		}
	}

	if v := getenv("DAIRYSENSE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DAIRYSENSE_RATE_LIMIT: %w", err)
		}
		cfg.RateLimitPerSecond = n
	}
	if v := getenv("DAIRYSENSE_ALERTS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DAIRYSENSE_ALERTS_ENABLED: %w", err)
		}
		cfg.Alerts.Enabled = b
	}
	return nil
}

// Validate checks cross-field rules.
func (c Config) Validate() error {
	if c.IsProduction() {
		if c.CSRFKey == "" {
			return ErrMissingCSRFKey
		}
		if c.SessionKey == "" {
			return ErrMissingSessionKey
		}
	}
	if len(c.CSRFKey) < 32 || len(c.SessionKey) < 32 {
		return ErrShortKey
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SessionTTL <= 0 || c.UpstreamTimeout <= 0 {
		return ErrBadInterval
	}
	if c.Alerts.Enabled {
		if c.Alerts.PollInterval <= 0 {
			return ErrBadInterval
		}
		if len(c.Alerts.Recipients) == 0 && (c.Slack.Token == "" || c.Slack.Channel == "") {
			return ErrNoAlertChannel
		}
		if c.Alerts.ServiceEmail == "" || c.Alerts.ServicePassword == "" {
			return ErrNoServiceAccount
		}
	}
	return nil
}

// Location resolves Timezone. Empty means the host's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadTimezone, c.Timezone)
	}
	return loc, nil
}

// CSRFAuthKey derives the 32-byte gorilla/csrf key.
func (c Config) CSRFAuthKey() []byte {
	sum := sha256.Sum256([]byte("csrf:" + c.CSRFKey))
	return sum[:]
}

// SessionSecret returns the secret used to seal stored API tokens.
func (c Config) SessionSecret() []byte {
	return []byte(c.SessionKey)
}

// randomKey is a per-process development secret; sessions do not survive restarts.
func randomKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
