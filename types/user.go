package types

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxNameLength bounds names, cities, states and countries.
	MaxNameLength = 255

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
)

// User represents an account in the system.
// It contains identity, the admin flag, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's unique login address.
	Email string `json:"email" db:"email"`

	// IsAdmin grants the administrator capabilities. Only an admin actor
	// may change it.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Actor returns the authorization identity of u.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, IsAdmin: u.IsAdmin}
}

// Summary returns the embedded representation used inside other resources.
func (u User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin}
}

// UserSummary is the reduced user shape embedded in traveler and trip
// request representations.
type UserSummary struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Actor is the authenticated identity making a request. It is passed
// explicitly to every authorization and query-scoping decision.
type Actor struct {
	ID      int
	IsAdmin bool
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName records name failures under field.
func ValidateName(v *ValidationError, field, name string, required bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		if required {
			v.Add(field, "required", field+" is required")
		}
		return
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		v.Add(field, "max", field+" may not be greater than 255 characters")
	}
}

// ValidateEmail records email failures under the "email" field.
func ValidateEmail(v *ValidationError, email string, required bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		if required {
			v.Add("email", "required", "email is required")
		}
		return
	}
	if utf8.RuneCountInString(email) > MaxNameLength {
		v.Add("email", "max", "email may not be greater than 255 characters")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.Add("email", "email", "email must be a valid email address")
	}
}

// ValidatePassword records password failures. confirmation is checked only
// when checkConfirmation is set.
func ValidatePassword(v *ValidationError, password, confirmation string, required, checkConfirmation bool) {
	if password == "" {
		if required {
			v.Add("password", "required", "password is required")
		}
		return
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		v.Add("password", "min", "password must be at least 8 characters")
	}
	if checkConfirmation && password != confirmation {
		v.Add("password", "confirmed", "password confirmation does not match")
	}
}
