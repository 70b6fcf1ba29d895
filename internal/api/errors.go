package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel causes carried by *Error. Test with errors.Is.
var (
	ErrNetwork        = errors.New("network error")
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrSessionExpired = errors.New("session expired")
)

// Error is the single error type returned by the client.
type Error struct {
	// Status is the HTTP status code, or 0 when no response was received.
	Status  int
	Message string
	Details *Details

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsUnauthorized reports whether err is an *Error with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// ValidationError is a single field-level validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Details is the optional details object of an error envelope.
type Details struct {
	Errors           []string
	ValidationErrors []ValidationError
	// Raw is the details object exactly as the server sent it.
	Raw              json.RawMessage
}

// UnmarshalJSON keeps the raw object and picks out the known error lists.
// Unknown shapes are kept in Raw only.
func (d *Details) UnmarshalJSON(b []byte) error {
	d.Raw = append(json.RawMessage(nil), b...)

	var known struct {
		Errors           []string          `json:"errors"`
		ValidationErrors []ValidationError `json:"validation_errors"`
	}
	if err := json.Unmarshal(b, &known); err == nil {
		d.Errors = known.Errors
		d.ValidationErrors = known.ValidationErrors
	}
	return nil
}

// MarshalJSON writes the raw details back out.
func (d Details) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

// errorMessage derives the human-readable message for a failed envelope:
// error, then message, then the joined details lists, then the status text.
func errorMessage(env *Envelope, status int) string {
	if env != nil {
		if env.Error != "" {
			return env.Error
		}
		if env.Message != "" {
			return env.Message
		}
		if env.Details != nil {
			if len(env.Details.Errors) > 0 {
				return strings.Join(env.Details.Errors, "; ")
			}
			if len(env.Details.ValidationErrors) > 0 {
				parts := make([]string, 0, len(env.Details.ValidationErrors))
				for _, v := range env.Details.ValidationErrors {
					if v.Field == "" {
						parts = append(parts, v.Message)
						continue
					}
					parts = append(parts, v.Field+": "+v.Message)
				}
				return strings.Join(parts, "; ")
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

func networkError(err error) *Error {
	return &Error{
		Status:  0,
		Message: "Network error: unable to reach the server",
		cause:   fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

func noRefreshTokenError() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Message: "No refresh token available",
		cause:   ErrNoRefreshToken,
	}
}

func sessionExpiredError(cause error) *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Message: "Session expired. Please log in again.",
		cause:   fmt.Errorf("%w: %w", ErrSessionExpired, cause),
	}
}
