package animal

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrEmptyName   = errors.New("animal name cannot be empty")
	ErrNegativeAge = errors.New("animal age cannot be negative")
)

// Animal is a monitored cow.
type Animal struct {
	ID      int
	Name    string
	BreedID int
	Age     int
	Earring string
}

// Breed is a reference breed from the API.
type Breed struct {
	ID   int
	Name string
}

// Validate checks if the Animal has valid data.
// PRE: Animal struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Animal) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.Age < 0 {
		return ErrNegativeAge
	}
	return nil
}

// CandidateID implements assignment.Candidate.
func (a Animal) CandidateID() int {
	return a.ID
}

// Label returns the display label used in pickers.
func (a Animal) Label() string {
	if a.Earring == "" {
		return a.Name
	}
	return a.Name + " (Earring: " + a.Earring + ")"
}

// NameIndex maps animal ids to names.
func NameIndex(animals []Animal) map[int]string {
	idx := make(map[int]string, len(animals))
	for _, a := range animals {
		idx[a.ID] = a.Name
	}
	return idx
}

// BreedName returns the name of the breed with the given id, or "" if unknown.
func BreedName(breeds []Breed, id int) string {
	for _, b := range breeds {
		if b.ID == id {
			return b.Name
		}
	}
	return ""
}
