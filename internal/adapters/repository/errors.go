package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("feature not found")
	ErrAlreadyExists = errors.New("feature already exists")
)
