// Package pipeline orchestrates document processing: intake, the
// classify/match/gate stages, manual workflow transitions, idempotent
// reprocessing, match overrides, and explicit reclassification. All
// operations on one document are serialized through an in-process keyed
// lock; writes additionally carry optimistic version checks.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/internal/documents"
)

// Default NATS subjects. Ingestion connectors publish intake records to
// the intake subject; the pipeline publishes an Event after every
// lifecycle-changing operation.
const (
	DefaultIntakeSubject = "courier.intake"
	DefaultEventSubject  = "courier.events"
)

// System is the public contract for pipeline operations.
type System interface {
	Handler() *Handler

	// Submit registers a raw intake record and runs the automated
	// pipeline stages appropriate for its classified type.
	Submit(ctx context.Context, req SubmitRequest) (*documents.Document, error)

	// SubmitUpload registers a document with a source file. The file is
	// stored once and recorded as a storage external ref.
	SubmitUpload(ctx context.Context, req UploadRequest) (*documents.Document, error)

	// SubmitBatch submits independent records with bounded parallelism.
	// Per-record failures are reported in the result items, not as an
	// error.
	SubmitBatch(ctx context.Context, reqs []SubmitRequest) ([]BatchItem, error)

	// Transition applies a workflow event to a document.
	Transition(ctx context.Context, id uuid.UUID, req TransitionRequest) (*documents.Document, error)

	// Reprocess re-runs classify, match, and the gate on the stored raw
	// fields and repositions the document. It never re-uploads the
	// source file and never issues an ERP create when an erp ref exists.
	Reprocess(ctx context.Context, id uuid.UUID, req ReprocessRequest) (*documents.Document, error)

	// OverrideMatch manually resolves the document's party, learns a
	// vendor alias from the document's name field, and re-gates a
	// document held for vendor matching.
	OverrideMatch(ctx context.Context, id uuid.UUID, req OverrideMatchRequest) (*documents.Document, error)

	// Reclassify explicitly changes the document type, repositions the
	// document in the new type's machine, and resumes automated stages.
	Reclassify(ctx context.Context, id uuid.UUID, req ReclassifyRequest) (*documents.Document, error)
}

// SubmitRequest is a raw intake record. ID is optional and preset only
// for idempotent submission by connectors that track their own ids.
type SubmitRequest struct {
	ID             *uuid.UUID        `json:"id,omitempty"`
	Source         string            `json:"source"`
	SourceMetadata map[string]string `json:"source_metadata,omitempty"`
	RawFields      map[string]any    `json:"raw_fields,omitempty"`
	Actor          string            `json:"actor,omitempty"`
}

// IntakeMessage is the payload ingestion connectors publish to the
// intake subject. PublishedAt feeds the queue lag metric.
type IntakeMessage struct {
	SubmitRequest
	PublishedAt time.Time `json:"published_at"`
}

// UploadRequest is an intake record with a source file.
type UploadRequest struct {
	Source         string
	SourceMetadata map[string]string
	RawFields      map[string]any
	Actor          string
	Filename       string
	ContentType    string
	Data           []byte
	PageCount      *int
}

// BatchItem reports the outcome for one record of a batch submission.
type BatchItem struct {
	Index    int                 `json:"index"`
	Document *documents.Document `json:"document,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// TransitionRequest applies a workflow event. ERPRef and InvoiceRef
// optionally record external references established out of band; the
// guard evaluation sees them before the edge is applied.
type TransitionRequest struct {
	Event      string `json:"event"`
	Actor      string `json:"actor,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ERPRef     string `json:"erp_ref,omitempty"`
	InvoiceRef string `json:"invoice_ref,omitempty"`
}

// ReprocessRequest identifies who requested the reprocess.
type ReprocessRequest struct {
	Actor string `json:"actor,omitempty"`
}

// OverrideMatchRequest manually resolves the document's party.
type OverrideMatchRequest struct {
	PartyID uuid.UUID `json:"party_id"`
	Actor   string    `json:"actor,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// ReclassifyRequest explicitly changes the document type.
type ReclassifyRequest struct {
	DocType documents.DocType `json:"doc_type"`
	Actor   string            `json:"actor,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}

// Event is published to the event subject after every lifecycle-changing
// operation.
type Event struct {
	DocumentID uuid.UUID         `json:"document_id"`
	DocType    documents.DocType `json:"doc_type"`
	Status     documents.Status  `json:"status"`
	Event      string            `json:"event"`
	Actor      string            `json:"actor"`
	OccurredAt time.Time         `json:"occurred_at"`
}
