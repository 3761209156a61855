package claim

import (
	"fmt"
	"net/http"
)

// ErrorCategory classifies why a call to the claims API did not produce a result.
type ErrorCategory string

const (
	CategoryConnectivity ErrorCategory = "connectivity"
	CategoryTimeout      ErrorCategory = "timeout"
	CategoryServerError  ErrorCategory = "server-error"
	CategoryBadResponse  ErrorCategory = "bad-response"
	CategoryInvalidInput ErrorCategory = "invalid-input"
	CategoryCanceled     ErrorCategory = "canceled"
)

// Title is the human label of the category.
func (c ErrorCategory) Title() string {
	switch c {
	case CategoryConnectivity:
		return "Connection failed"
	case CategoryTimeout:
		return "Request timed out"
	case CategoryServerError:
		return "Server error"
	case CategoryBadResponse:
		return "Unreadable response"
	case CategoryInvalidInput:
		return "Invalid input"
	case CategoryCanceled:
		return "Request canceled"
	default:
		return "Error"
	}
}

// ClaimError is the only error type returned across the claims API boundary.
type ClaimError struct {
	Category ErrorCategory
	// StatusCode is zero when no HTTP response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *ClaimError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Category, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Category, msg)
}

func (e *ClaimError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInvalidInput reports a problem with what the user supplied.
func NewInvalidInput(msg string) *ClaimError {
	return &ClaimError{Category: CategoryInvalidInput, Message: msg}
}

// NewServerError reports a non-2xx response. An empty message falls back to the status text.
func NewServerError(status int, msg string) *ClaimError {
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "unexpected status"
	}
	return &ClaimError{Category: CategoryServerError, StatusCode: status, Message: msg}
}

// NewBadResponse reports a 2xx response whose body could not be used.
func NewBadResponse(status int, err error) *ClaimError {
	return &ClaimError{
		Category:   CategoryBadResponse,
		StatusCode: status,
		Message:    "the claims API returned a response that is not a JSON object",
		Err:        err,
	}
}
