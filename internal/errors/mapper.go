// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Status converts repo/service/infra errors into an HTTP status code.
// Keeps handlers clean by centralizing error mapping.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, ErrInvalidFilter),
		errors.Is(err, ErrSelfSwipe),
		errors.Is(err, ErrInvalidDecision),
		errors.Is(err, ErrUndoExpired):
		return http.StatusBadRequest

	case errors.Is(err, ErrDuplicateSwipe):
		return http.StatusConflict

	case errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrSubjectNotFound),
		errors.Is(err, ErrNothingToUndo),
		errors.Is(err, ErrMatchNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		// client went away
		return 499

	default:
		return http.StatusInternalServerError
	}
}

// Is re-exports errors.Is so callers importing this package under an
// alias don't need the stdlib package as well.
func Is(err, target error) bool { return errors.Is(err, target) }
