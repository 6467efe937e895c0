package services

import (
	"errors"
	"fmt"

	"reicrm/internal/repositories"
)

var (
	ErrNotFound          = repositories.ErrNotFound
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPlanLimit         = errors.New("plan limit reached")
	ErrValidation        = errors.New("validation failed")

	errEmailTaken = fmt.Errorf("%w: email already registered", ErrConflict)
)

// invalidf builds an ErrValidation carrying a client-facing message.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ValidationMessage strips the sentinel prefix for the response body.
func ValidationMessage(err error) string {
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
