package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/relvacode/iso8601"

	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/baseline"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/reading"
	"dairysense/internal/domain/user"
)

// timestampLayout matches what browsers send from Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var jsonNull = []byte("null")

// number accepts JSON numbers and numeric strings. Decimal columns arrive as strings.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("decode number %q: %w", s, err)
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

// timestamp decodes any ISO 8601 instant; null or "" is the zero time.
type timestamp time.Time

func (t *timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*t = timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = timestamp{}
		return nil
	}
	parsed, err := iso8601.ParseString(s)
	if err != nil {
		return fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	*t = timestamp(parsed)
	return nil
}

// calendarDate decodes "YYYY-MM-DD" or a full timestamp, keeping the date as written.
type calendarDate time.Time

func (d *calendarDate) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*d = calendarDate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := period.ParseDate(s)
	if err != nil {
		return fmt.Errorf("decode date %q: %w", s, err)
	}
	*d = calendarDate(parsed)
	return nil
}

// dateOrNull renders a calendar date for request bodies; zero becomes null.
func dateOrNull(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := period.FormatDate(t)
	return &s
}

func idOrNull(id int) *int {
	if id == 0 {
		return nil
	}
	return &id
}

type animalDTO struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	BreedID int    `json:"breed_id"`
	Age     int    `json:"age"`
	Earring string `json:"earring"`
}

func (a animalDTO) domain() animal.Animal {
	return animal.Animal{ID: a.ID, Name: a.Name, BreedID: a.BreedID, Age: a.Age, Earring: a.Earring}
}

type animalBody struct {
	Animal struct {
		Name    string `json:"name"`
		BreedID *int   `json:"breed_id"`
		Age     *int   `json:"age"`
		Earring string `json:"earring"`
	} `json:"animal"`
}

func newAnimalBody(a animal.Animal) animalBody {
	var b animalBody
	b.Animal.Name = a.Name
	b.Animal.BreedID = idOrNull(a.BreedID)
	if a.Age > 0 {
		age := a.Age
		b.Animal.Age = &age
	}
	b.Animal.Earring = a.Earring
	return b
}

type breedDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type deviceDTO struct {
	ID           int       `json:"id"`
	SerialNumber string    `json:"serial_number"`
	APIKey       string    `json:"api_key"`
	CreatedAt    timestamp `json:"created_at"`
}

func (d deviceDTO) domain() device.Device {
	return device.Device{ID: d.ID, SerialNumber: d.SerialNumber, APIKey: d.APIKey, CreatedAt: time.Time(d.CreatedAt)}
}

type deviceBody struct {
	Device struct {
		SerialNumber string `json:"serial_number"`
	} `json:"device"`
}

type userDTO struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u userDTO) domain() user.User {
	return user.User{ID: u.ID, Name: u.Name, Email: u.Email}
}

// userEnvelope handles responses shaped either {"user": {...}} or {...}.
type userEnvelope struct {
	User *userDTO `json:"user"`
	userDTO
}

func (e userEnvelope) domain() user.User {
	if e.User != nil {
		return e.User.domain()
	}
	return e.userDTO.domain()
}

type userBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type assignmentDTO struct {
	ID        int          `json:"id"`
	AnimalID  int          `json:"animal_id"`
	DeviceID  int          `json:"device_id"`
	StartDate calendarDate `json:"start_date"`
	EndDate   calendarDate `json:"end_date"`
}

func (a assignmentDTO) domain() assignment.Assignment {
	return assignment.Assignment{
		ID:        a.ID,
		AnimalID:  a.AnimalID,
		DeviceID:  a.DeviceID,
		StartDate: time.Time(a.StartDate),
		EndDate:   time.Time(a.EndDate),
	}
}

type assignmentBody struct {
	DeviceAnimal struct {
		AnimalID  *int    `json:"animal_id"`
		DeviceID  *int    `json:"device_id"`
		StartDate *string `json:"start_date"`
		EndDate   *string `json:"end_date"`
	} `json:"device_animal"`
}

func newAssignmentBody(in assignment.Input) assignmentBody {
	var b assignmentBody
	b.DeviceAnimal.AnimalID = idOrNull(in.AnimalID)
	b.DeviceAnimal.DeviceID = idOrNull(in.DeviceID)
	b.DeviceAnimal.StartDate = dateOrNull(in.StartDate)
	b.DeviceAnimal.EndDate = dateOrNull(in.EndDate)
	return b
}

type readingDTO struct {
	ID          int       `json:"id"`
	AnimalID    int       `json:"animal_id"`
	DeviceID    int       `json:"device_id"`
	AccelX      number    `json:"accel_x"`
	AccelY      number    `json:"accel_y"`
	AccelZ      number    `json:"accel_z"`
	CollectedAt timestamp `json:"collected_at"`
}

func (r readingDTO) domain() reading.Reading {
	return reading.Reading{
		ID:          r.ID,
		AnimalID:    r.AnimalID,
		DeviceID:    r.DeviceID,
		AccelX:      float64(r.AccelX),
		AccelY:      float64(r.AccelY),
		AccelZ:      float64(r.AccelZ),
		CollectedAt: time.Time(r.CollectedAt),
	}
}

type baselineDTO struct {
	ID           int          `json:"id"`
	AnimalID     int          `json:"animal_id"`
	Hour         int          `json:"hour"`
	BaselineENMO number       `json:"baseline_enmo"`
	MADENMO      number       `json:"mad_enmo"`
	PeriodStart  calendarDate `json:"period_start"`
	PeriodEnd    calendarDate `json:"period_end"`
	CreatedAt    timestamp    `json:"created_at"`
}

func (b baselineDTO) domain() baseline.Baseline {
	return baseline.Baseline{
		ID:           b.ID,
		AnimalID:     b.AnimalID,
		Hour:         b.Hour,
		BaselineENMO: float64(b.BaselineENMO),
		MADENMO:      float64(b.MADENMO),
		PeriodStart:  time.Time(b.PeriodStart),
		PeriodEnd:    time.Time(b.PeriodEnd),
		CreatedAt:    time.Time(b.CreatedAt),
	}
}

type alertDTO struct {
	ID         int       `json:"id"`
	AnimalID   int       `json:"animal_id"`
	DetectedAt timestamp `json:"detected_at"`
	ZScore     number    `json:"z_score"`
}

func (a alertDTO) domain() alert.Alert {
	return alert.Alert{ID: a.ID, AnimalID: a.AnimalID, DetectedAt: time.Time(a.DetectedAt), ZScore: float64(a.ZScore)}
}

// DashboardStats are the headline counters on the dashboard.
type DashboardStats struct {
	ActiveCollars int `json:"activeCollars"`
	TotalAnimals  int `json:"totalAnimals"`
	TodayReadings int `json:"todayReadings"`
	Alerts        int `json:"alerts"`
}
