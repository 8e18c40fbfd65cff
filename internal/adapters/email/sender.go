// Package email delivers alert notifications by email.
package email

import (
	"context"
	"time"
)

// SendRequest is one outbound email.
type SendRequest struct {
	To      []string
	From    string // e.g. "DairySense <alerts@dairysense.io>"; empty uses the sender default
	Subject string
	HTML    string
	Text    string // plain-text alternative, optional
	ReplyTo string
}

// SendResult is the provider's acknowledgement.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender sends email through an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
