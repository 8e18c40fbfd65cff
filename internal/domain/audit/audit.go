// Package audit records who changed what through the console.
package audit

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Category groups audit events by the resource family they touch.
type Category string

const (
	CategoryAnimal       Category = "animal"
	CategoryDevice       Category = "device"
	CategoryAssignment   Category = "assignment"
	CategoryBaseline     Category = "baseline"
	CategoryUser         Category = "user"
	CategorySecurity     Category = "security"
	CategoryNotification Category = "notification"
)

// Action is what happened.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionLogin   Action = "login"
	ActionLogout  Action = "logout"
	ActionRetry   Action = "retry"
	ActionAbandon Action = "abandon"
	ActionReject  Action = "reject"
)

// Severity is the event's importance.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is a single audit log entry.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	ActorEmail   string    `json:"actor_email"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	Metadata     string    `json:"metadata"`
}

// NewEvent creates an info-level event stamped with the current time.
// PRE: actorEmail and action are non-empty
// POST: Returns an Event with a fresh id
func NewEvent(actorEmail string, category Category, action Action) Event {
	return Event{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Category:   category,
		Action:     action,
		Severity:   SeverityInfo,
		ActorEmail: actorEmail,
	}
}

// WithSeverity sets the severity level.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource sets the resource the event applies to.
func (e Event) WithResource(resourceType string, resourceID int) Event {
	e.ResourceType = resourceType
	if resourceID != 0 {
		e.ResourceID = strconv.Itoa(resourceID)
	}
	return e
}

// WithDescription sets the human-readable summary.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithRequest sets the client address and user agent.
func (e Event) WithRequest(ipAddress, userAgent string) Event {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// WithMetadata attaches a JSON blob.
func (e Event) WithMetadata(metadata string) Event {
	e.Metadata = metadata
	return e
}
