package parties

import (
	"errors"
	"net/http"
)

// Domain errors for party directory operations.
var (
	ErrNotFound       = errors.New("party not found")
	ErrDuplicate      = errors.New("party number already registered")
	ErrDuplicateAlias = errors.New("alias already registered")
	ErrInvalidKind    = errors.New("invalid party kind")
	ErrInvalidBody    = errors.New("invalid request body")
)

// MapHTTPStatus maps party domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrDuplicateAlias):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidKind), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
