// Package alert models heat-detection alerts raised by the API.
package alert

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/period"
)

// UnknownAnimal is shown for alerts whose animal is no longer listed.
const UnknownAnimal = "Unknown animal"

// Alert is a single heat-detection event.
type Alert struct {
	ID         int
	AnimalID   int
	DetectedAt time.Time
	ZScore     float64
	AnimalName string
}

// Filter narrows the alert list. Zero fields are not sent.
type Filter struct {
	AnimalID  int
	StartDate time.Time
	EndDate   time.Time
}

// Query encodes the filter as API query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.AnimalID != 0 {
		q.Set("animal_id", strconv.Itoa(f.AnimalID))
	}
	if !f.StartDate.IsZero() {
		q.Set("start", period.FormatDate(f.StartDate))
	}
	if !f.EndDate.IsZero() {
		q.Set("end", period.FormatDate(f.EndDate))
	}
	return q
}

// IsEmpty reports whether no filter field is set.
func (f Filter) IsEmpty() bool {
	return f.AnimalID == 0 && f.StartDate.IsZero() && f.EndDate.IsZero()
}

// Decorate fills AnimalName from the animal list.
// POST: every alert has a non-empty AnimalName
func Decorate(alerts []Alert, animals []animal.Animal) []Alert {
	names := animal.NameIndex(animals)
	out := make([]Alert, len(alerts))
	for i, a := range alerts {
		if name, ok := names[a.AnimalID]; ok {
			a.AnimalName = name
		} else {
			a.AnimalName = UnknownAnimal
		}
		out[i] = a
	}
	return out
}

// TimeAgo renders how long ago t was, in minutes, hours, or days.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < time.Hour:
		return plural(int(diff/time.Minute), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff/time.Hour), "hour")
	default:
		return plural(int(diff/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Newer returns the alerts with an id greater than watermark.
func Newer(alerts []Alert, watermark int) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.ID > watermark {
			out = append(out, a)
		}
	}
	return out
}

// MaxID returns the largest alert id, or 0.
func MaxID(alerts []Alert) int {
	max := 0
	for _, a := range alerts {
		if a.ID > max {
			max = a.ID
		}
	}
	return max
}
