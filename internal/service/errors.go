package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned when a store operation runs before Start.
	ErrNotStarted = errors.New("documents service not started")
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPageIndexOutOfRange is returned when a page operation addresses an
	// index the document does not have.
	ErrPageIndexOutOfRange = errors.New("page index out of range")
)

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
