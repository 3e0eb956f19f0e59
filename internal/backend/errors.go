package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Status  int
	Message string // Backend-provided message, may be empty
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("backend: %d %s", e.Status, http.StatusText(e.Status))
}

// IsStatus reports whether err is an HTTPError with one of the given codes.
func IsStatus(err error, codes ...int) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	for _, c := range codes {
		if he.Status == c {
			return true
		}
	}
	return false
}

// IsHTTP reports whether the backend answered at all (as opposed to a
// transport failure).
func IsHTTP(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// MessageOf returns the backend's own message for err when it sent one,
// otherwise fallback.
func MessageOf(err error, fallback string) string {
	var he *HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	return fallback
}

// parseError reads the Strapi error envelope, {"error":{"message":...}},
// tolerating a bare {"message":...} as well.
func parseError(status int, body []byte) *HTTPError {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	he := &HTTPError{Status: status}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return he
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		he.Message = envelope.Error.Message
	} else {
		he.Message = envelope.Message
	}
	return he
}
