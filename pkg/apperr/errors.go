package apperr

import (
	"errors"
	"net/http"
)

// Sentinel errors. Handlers classify with errors.Is, so any wrapping
// depth is fine.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUnknownModel        = errors.New("unknown model")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrForbiddenVisibility = errors.New("visibility not allowed for role")
	ErrForbiddenRole       = errors.New("role not allowed")
	ErrForbiddenScope      = errors.New("scope not allowed")
	ErrNotFound            = errors.New("not found")
	ErrAuthFailure         = errors.New("authentication failed")
	ErrProvider            = errors.New("provider error")
	ErrStorage             = errors.New("storage error")
)

// Status returns the HTTP status code for an error. Unclassified errors
// map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnknownModel),
		errors.Is(err, ErrUnsupportedFileType):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthFailure):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbiddenVisibility),
		errors.Is(err, ErrForbiddenRole),
		errors.Is(err, ErrForbiddenScope):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
