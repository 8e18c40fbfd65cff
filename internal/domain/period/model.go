// Package period validates calendar date ranges used for baselines and readings.
package period

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// DateLayout is the wire and form format for calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned by ParseDate for values that are neither a date nor an ISO 8601 timestamp.
var ErrInvalidDate = errors.New("invalid date")

// Reason explains why a period was rejected.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTooShort
	ReasonInverted
	ReasonTooLong
	ReasonFutureDated
)

// String returns a stable identifier for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonTooShort:
		return "too_short"
	case ReasonInverted:
		return "inverted"
	case ReasonTooLong:
		return "too_long"
	case ReasonFutureDated:
		return "future_dated"
	default:
		return "none"
	}
}

// Message returns the operator-facing text for a rejected period.
func (r Reason) Message(opts Options) string {
	switch r {
	case ReasonTooShort:
		if opts.MinDays == 1 {
			return "The period must span at least 1 day."
		}
		return "The period must span at least " + strconv.Itoa(opts.MinDays) + " days."
	case ReasonInverted:
		return "The start date must be on or before the end date."
	case ReasonTooLong:
		return "The period cannot exceed " + strconv.Itoa(opts.MaxDays) + " days."
	case ReasonFutureDated:
		return "The end date cannot be in the future."
	default:
		return ""
	}
}

// Options bounds a period. The zero value rejects future end dates and
// applies no length limits.
type Options struct {
	MinDays     int // <= 0 disables the minimum
	MaxDays     int // <= 0 disables the maximum
	AllowFuture bool
	Now         time.Time // zero means time.Now()
}

// DefaultOptions returns the 1 to 14 day bounds used when no preset applies.
func DefaultOptions() Options {
	return Options{MinDays: 1, MaxDays: 14}
}

// BaselineOptions returns the bounds for creating an activity baseline.
func BaselineOptions() Options {
	return Options{MinDays: 1, MaxDays: 14}
}

// ReadingsOptions returns the bounds for the readings chart. A single day is allowed.
func ReadingsOptions() Options {
	return Options{MinDays: 0, MaxDays: 5}
}

// Result is the outcome of Validate.
type Result struct {
	Valid  bool
	Reason Reason
}

// Validate checks a closed date range against opts. The first failing rule wins.
// A missing start or end date is reported as valid: there is nothing to check yet.
// PRE: none
// POST: Reason is ReasonNone iff Valid
// INVARIANT: inputs are not mutated
func Validate(start, end time.Time, opts Options) Result {
	if start.IsZero() || end.IsZero() {
		return Result{Valid: true}
	}
	s, e := DateOnly(start), DateOnly(end)
	if s.After(e) {
		return Result{Reason: ReasonInverted}
	}
	days := DaysBetween(s, e)
	if opts.MinDays > 0 && days < opts.MinDays {
		return Result{Reason: ReasonTooShort}
	}
	if opts.MaxDays > 0 && days > opts.MaxDays {
		return Result{Reason: ReasonTooLong}
	}
	if !opts.AllowFuture {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		if e.After(DateOnly(now)) {
			return Result{Reason: ReasonFutureDated}
		}
	}
	return Result{Valid: true}
}

// Error is a rejected period, carrying the options it was checked against
// so the message can name the limit.
type Error struct {
	Reason  Reason
	Options Options
}

func (e *Error) Error() string {
	return e.Reason.Message(e.Options)
}

// Check is Validate for callers that want an error. It returns nil or *Error.
func Check(start, end time.Time, opts Options) error {
	if r := Validate(start, end, opts); !r.Valid {
		return &Error{Reason: r.Reason, Options: opts}
	}
	return nil
}

// DateOnly drops the time of day, keeping the calendar date as seen in t's location.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// ParseDate parses "YYYY-MM-DD" or a full ISO 8601 timestamp, keeping only
// the calendar date. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	// Timestamps keep the date as written, before any zone conversion.
	if i := strings.IndexByte(s, 'T'); i == len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:i]); err == nil {
			return t, nil
		}
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return DateOnly(t), nil
}

// FormatDate renders t as "YYYY-MM-DD", or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// Today returns today's calendar date.
func Today(now time.Time) time.Time {
	if now.IsZero() {
		now = time.Now()
	}
	return DateOnly(now)
}
