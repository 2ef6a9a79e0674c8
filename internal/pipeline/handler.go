package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/pkg/handlers"
	"github.com/courier-labs/courier/pkg/routes"
)

// Handler provides the command-side HTTP endpoints for documents:
// intake, workflow transitions, and operator corrections. Read
// endpoints live on the documents handler under the same prefix.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, logger, and upload limit.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "pipeline"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for pipeline command endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "POST", Pattern: "/upload", Handler: h.Upload},
			{Method: "POST", Pattern: "/batch", Handler: h.Batch},
			{Method: "POST", Pattern: "/{id}/transition", Handler: h.Transition},
			{Method: "POST", Pattern: "/{id}/reprocess", Handler: h.Reprocess},
			{Method: "POST", Pattern: "/{id}/match", Handler: h.OverrideMatch},
			{Method: "POST", Pattern: "/{id}/reclassify", Handler: h.Reclassify},
		},
	}
}

// Submit ingests a single document described by a JSON body and runs it
// through the automated pipeline stages.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	doc, err := h.sys.Submit(r.Context(), req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, doc)
}

// Upload ingests a multipart form upload containing a source file plus
// intake metadata. Extracts PDF page count automatically for PDF files
// using pdfcpu.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, documents.ErrFileTooLarge)
		return
	}

	source := r.FormValue("source")
	if source == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	rawFields, err := decodeFormJSON[map[string]any](r.FormValue("raw_fields"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	sourceMetadata, err := decodeFormJSON[map[string]string](r.FormValue("source_metadata"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, documents.ErrInvalidFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, documents.ErrInvalidFile)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), data)
	pageCount := extractPDFPageCount(h.logger, data, contentType)

	req := UploadRequest{
		Source:         source,
		SourceMetadata: sourceMetadata,
		RawFields:      rawFields,
		Actor:          r.FormValue("actor"),
		Filename:       header.Filename,
		ContentType:    contentType,
		Data:           data,
		PageCount:      pageCount,
	}

	doc, err := h.sys.SubmitUpload(r.Context(), req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, doc)
}

// Batch ingests multiple documents concurrently. Individual failures
// are reported per item rather than failing the batch.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var reqs []SubmitRequest
	if err := handlers.DecodeJSON(r, &reqs); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	items, err := h.sys.SubmitBatch(r.Context(), reqs)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Transition applies a workflow event to a document.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	doc, err := h.sys.Transition(r.Context(), id, req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Reprocess re-runs the automated stages for a document.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ReprocessRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	doc, err := h.sys.Reprocess(r.Context(), id, req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// OverrideMatch manually resolves a document's party.
func (h *Handler) OverrideMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req OverrideMatchRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	doc, err := h.sys.OverrideMatch(r.Context(), id, req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Reclassify explicitly changes a document's type and repositions it
// in the matching workflow.
func (h *Handler) Reclassify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ReclassifyRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	doc, err := h.sys.Reclassify(r.Context(), id, req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidBody)
		return uuid.Nil, false
	}
	return id, true
}

func decodeFormJSON[T any](value string) (T, error) {
	var out T
	if strings.TrimSpace(value) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return out, err
	}
	return out, nil
}

func detectContentType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}

func extractPDFPageCount(logger *slog.Logger, data []byte, contentType string) *int {
	if contentType != "application/pdf" {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return nil
	}

	return &count
}
