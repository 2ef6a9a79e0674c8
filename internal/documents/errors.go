package documents

import (
	"errors"
	"net/http"
)

// Domain errors for document operations.
var (
	ErrNotFound     = errors.New("document not found")
	ErrConflict     = errors.New("document was modified concurrently")
	ErrDuplicateRef = errors.New("external reference already exists for system")
	ErrInvalidType  = errors.New("invalid document type")
	ErrInvalidBody  = errors.New("invalid request body")
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrInvalidFile  = errors.New("invalid file")
	ErrNoFile       = errors.New("document has no stored source file")
)

// MapHTTPStatus maps document domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoFile):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicateRef):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidBody), errors.Is(err, ErrInvalidFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
