package user

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrEmptyName        = errors.New("name is required")
	ErrInvalidEmail     = errors.New("a valid email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// User is a console operator account held by the API.
type User struct {
	ID    int
	Name  string
	Email string
}

// Input is the create/edit form payload.
type Input struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate checks the form. Password is required only when creating;
// on edit an empty password leaves the current one unchanged.
// PRE: Input is populated from the form
// POST: Returns nil if valid, a domain error otherwise
func (in Input) Validate(creating bool) error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if !ValidEmail(in.Email) {
		return ErrInvalidEmail
	}
	if creating && in.Password == "" {
		return ErrPasswordRequired
	}
	if in.Password != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidEmail applies the loose check used by the login form.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}
