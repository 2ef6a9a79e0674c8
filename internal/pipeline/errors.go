package pipeline

import (
	"errors"
	"net/http"

	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/parties"
	"github.com/courier-labs/courier/internal/workflow"
)

// Pipeline operation errors.
var (
	ErrInvalidBody      = errors.New("invalid request body")
	ErrTerminalStatus   = errors.New("document is in a terminal status")
	ErrNotReprocessable = errors.New("document status does not allow reprocessing")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum size")
	ErrPartyNotFound    = errors.New("party not found")
)

// MapHTTPStatus maps pipeline errors, including those surfaced from the
// document, party, and workflow packages, to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidBody), errors.Is(err, ErrBatchTooLarge),
		errors.Is(err, workflow.ErrUnknownDocType), errors.Is(err, documents.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, ErrPartyNotFound), errors.Is(err, documents.ErrNotFound),
		errors.Is(err, parties.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTerminalStatus), errors.Is(err, ErrNotReprocessable),
		errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrGuardFailed),
		errors.Is(err, documents.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, documents.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, documents.ErrInvalidFile), errors.Is(err, documents.ErrInvalidBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
