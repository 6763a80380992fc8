package mls_errors

import (
	"errors"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("storage unavailable")
)
