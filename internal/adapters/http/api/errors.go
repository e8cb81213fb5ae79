package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/featreg/internal/domain/registry"
)

// Sentinel kinds for API errors. Their messages are what clients see in the
// "error" field.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrBadRequest       = errors.New("bad request")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidField     = errors.New("invalid field")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrRateLimited      = errors.New("rate limited")
	ErrTooLarge         = errors.New("request body too large")
	ErrInternal         = errors.New("internal error")
)

// Error tags a cause with the operation that failed and the kind that
// decides the response status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Op == "":
		return e.Err.Error()
	default:
		return e.Op + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind as well as its cause chain.
func (e *Error) Is(target error) bool { return target == e.Kind }

// NewKind builds an Error of kind with a formatted detail message.
func NewKind(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapKind tags err with op and kind. A nil err stays nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op, deriving the kind from the registry's errors.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return &Error{Op: op, Kind: apiErr.Kind, Err: apiErr.Err}
	}
	return &Error{Op: op, Kind: kindOf(err), Err: err}
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, registry.ErrAlreadyExists):
		return ErrAlreadyExists
	case errors.Is(err, registry.ErrInvalidField):
		return ErrInvalidField
	case errors.Is(err, registry.ErrInvalidInput):
		return ErrInvalidInput
	default:
		return ErrInternal
	}
}

// errorKind returns the kind of err, Internal when it carries none.
func errorKind(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return kindOf(err)
}

// statusFor maps an error kind onto an HTTP status and a stable code.
func statusFor(kind error) (int, string) {
	switch kind {
	case ErrNotFound:
		return http.StatusNotFound, "not_found"
	case ErrAlreadyExists:
		return http.StatusConflict, "already_exists"
	case ErrBadRequest:
		return http.StatusBadRequest, "bad_request"
	case ErrInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case ErrInvalidField:
		return http.StatusBadRequest, "invalid_field"
	case ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case ErrTooLarge:
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case ErrRateLimited:
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
