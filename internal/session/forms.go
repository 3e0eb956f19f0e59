package session

import (
	"strings"

	"github.com/Mohammad2410/Sphere/internal/backend"
)

// MinPasswordLength is the shortest password registration accepts.
const MinPasswordLength = 6

// ValidationError rejects a form before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthError is a login or registration the backend refused, or could not
// be reached for. Message is fit for display.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func authError(err error, fallback string) *AuthError {
	if !backend.IsHTTP(err) {
		return &AuthError{Message: msgNetwork, Err: err}
	}
	return &AuthError{Message: backend.MessageOf(err, fallback), Err: err}
}

// Credentials is the login form.
type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate checks the form locally.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" {
		return &ValidationError{Field: "identifier", Message: "Please enter your email or username"}
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Message: "Please enter your password"}
	}
	return nil
}

// Registration is the sign-up form. Name fields are optional.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

// Validate checks the form locally, in the order the form reports errors.
func (r Registration) Validate() error {
	if r.Password != r.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	if len(r.Password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters long"}
	}
	if strings.TrimSpace(r.Username) == "" {
		return &ValidationError{Field: "username", Message: "Please enter a username"}
	}
	if strings.TrimSpace(r.Email) == "" {
		return &ValidationError{Field: "email", Message: "Please enter your email"}
	}
	return nil
}
