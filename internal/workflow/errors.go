package workflow

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrGuardFailed       = errors.New("workflow guard not satisfied")
	ErrUnknownDocType    = errors.New("unknown document type")
)

// MapHTTPStatus maps workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrGuardFailed):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownDocType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
