// Package session models an operator's login to the console.
package session

import "time"

// DefaultTTL is how long a session lasts without an explicit setting.
const DefaultTTL = 24 * time.Hour

// Session ties a browser cookie to the bearer token the API issued at login.
// APIToken never leaves the server.
type Session struct {
	ID        string
	Email     string
	APIToken  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
