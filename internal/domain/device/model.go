package device

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptySerial is returned when a device has no serial number.
var ErrEmptySerial = errors.New("serial number cannot be empty")

// Device is an accelerometer collar.
// APIKey is only populated in the response to a create call.
type Device struct {
	ID           int
	SerialNumber string
	APIKey       string
	CreatedAt    time.Time
}

// Validate checks if the Device has valid data.
// PRE: Device struct is populated
// POST: Returns nil if valid, error otherwise
func (d *Device) Validate() error {
	if strings.TrimSpace(d.SerialNumber) == "" {
		return ErrEmptySerial
	}
	return nil
}

// CandidateID implements assignment.Candidate.
func (d Device) CandidateID() int {
	return d.ID
}

// Label returns the display label used in pickers.
func (d Device) Label() string {
	return d.SerialNumber
}
