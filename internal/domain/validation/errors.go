package validation

import "errors"

// Sentinel kinds for validation failures.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidField = errors.New("invalid field")
)
