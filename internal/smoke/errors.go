package smoke

import (
	"errors"
	"fmt"
)

// Sentinel kinds for smoke test failures.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrVerification     = errors.New("verification failed")
)

// APIError is a non-2xx response decoded from the service's error body.
type APIError struct {
	Status    int
	Kind      string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
}

// Unwrap lets callers match any APIError with ErrUnexpectedStatus.
func (e *APIError) Unwrap() error { return ErrUnexpectedStatus }
