// Package reading holds accelerometer samples and the summaries drawn from them.
package reading

import (
	"math"
	"time"
)

// Reading is a single 3-axis accelerometer sample.
type Reading struct {
	ID          int
	AnimalID    int
	DeviceID    int
	AccelX      float64
	AccelY      float64
	AccelZ      float64
	CollectedAt time.Time
}

// Magnitude returns the Euclidean norm of the acceleration vector.
func (r Reading) Magnitude() float64 {
	return math.Sqrt(r.AccelX*r.AccelX + r.AccelY*r.AccelY + r.AccelZ*r.AccelZ)
}

// Summary aggregates a set of magnitudes.
type Summary struct {
	Count int
	Avg   float64
	Min   float64
	Max   float64
}

// Summarize computes count, mean, min and max of the reading magnitudes.
// PRE: none
// POST: zero Summary when readings is empty
func Summarize(readings []Reading) Summary {
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Magnitude()
	}
	return summarizeValues(values)
}

func summarizeValues(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(values), Min: values[0], Max: values[0]}
	var total float64
	for _, v := range values {
		total += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Avg = total / float64(len(values))
	return s
}

// HourBucket is one hour of the preview series.
type HourBucket struct {
	Hour    time.Time
	Count   int
	Avg     float64
	HasData bool
}

// Hourly buckets readings by hour in loc, covering start 00:00 through end 23:00.
// Hours without readings are present with HasData false.
// PRE: start and end are calendar dates, start <= end
// POST: len(result) == 24 * days in range
func Hourly(readings []Reading, start, end time.Time, loc *time.Location) []HourBucket {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 23, 0, 0, 0, loc)
	if last.Before(first) {
		return nil
	}

	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, r := range readings {
		t := r.CollectedAt.In(loc)
		// Key on the local wall-clock hour; zone offsets are not always whole hours.
		h := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc).Unix()
		sums[h] += r.Magnitude()
		counts[h]++
	}

	var buckets []HourBucket
	for h := first; !h.After(last); h = h.Add(time.Hour) {
		key := h.Unix()
		b := HourBucket{Hour: h, Count: counts[key]}
		if b.Count > 0 {
			b.HasData = true
			b.Avg = sums[key] / float64(b.Count)
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// Coverage summarizes an hourly series.
type Coverage struct {
	Summary
	HoursWithData int
	HoursMissing  int
}

// SummarizeHours computes stats over the hourly averages and counts the gaps.
func SummarizeHours(buckets []HourBucket) Coverage {
	var values []float64
	for _, b := range buckets {
		if b.HasData {
			values = append(values, b.Avg)
		}
	}
	return Coverage{
		Summary:       summarizeValues(values),
		HoursWithData: len(values),
		HoursMissing:  len(buckets) - len(values),
	}
}

// Window returns the UTC instants bounding the calendar range [start, end] in loc:
// start at 00:00:00.000 and end at 23:59:59.999.
func Window(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return from.UTC(), to.UTC()
}
