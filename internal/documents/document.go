// Package documents implements the document domain for Courier.
// It provides types, data access, and HTTP endpoints for document
// records, their workflow history, and external system references.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is a business document moving through the hub. Classification
// and match results are stored as JSONB alongside typed projections
// (DocumentNumber, Amount, PartyID) used by duplicate queries.
type Document struct {
	ID             uuid.UUID         `json:"id"`
	DocType        DocType           `json:"doc_type"`
	Source         string            `json:"source"`
	SourceMetadata map[string]string `json:"source_metadata"`
	RawFields      map[string]any    `json:"raw_fields"`
	Classification *Classification   `json:"classification,omitempty"`
	Match          *MatchResult      `json:"match_result,omitempty"`
	Status         Status            `json:"workflow_status"`
	PartyID        *uuid.UUID        `json:"party_id,omitempty"`
	PartyName      *string           `json:"party_name,omitempty"`
	DocumentNumber *string           `json:"document_number,omitempty"`
	Amount         *float64          `json:"amount,omitempty"`
	Filename       *string           `json:"filename,omitempty"`
	ContentType    *string           `json:"content_type,omitempty"`
	SizeBytes      *int64            `json:"size_bytes,omitempty"`
	PageCount      *int              `json:"page_count,omitempty"`
	LastError      *string           `json:"last_error,omitempty"`
	Version        int               `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// HistoryEntry is one append-only workflow history row. FromStatus is
// empty for the intake entry; From == To records an audited action that
// did not move the document.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Event      string    `json:"event"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ExternalRef records a reference created in an external system.
// At most one ref per system per document.
type ExternalRef struct {
	DocumentID uuid.UUID `json:"document_id"`
	System     string    `json:"system"`
	Ref        string    `json:"ref"`
	CreatedAt  time.Time `json:"created_at"`
}

// External ref system names used by the pipeline.
const (
	RefSystemERP     = "erp"
	RefSystemInvoice = "invoice"
	RefSystemStorage = "storage"
)

// CreateCommand carries the data needed to register a new document.
// ID is optional; when nil, one is generated. File fields are populated
// only by the upload entry point.
type CreateCommand struct {
	ID             *uuid.UUID
	Source         string
	SourceMetadata map[string]string
	RawFields      map[string]any
	DocumentNumber *string
	Amount         *float64
	Filename       *string
	ContentType    *string
	SizeBytes      *int64
	PageCount      *int
	Actor          string
}

// TransitionRecord describes one applied workflow transition, persisted
// as a status change plus exactly one history entry.
type TransitionRecord struct {
	FromStatus Status
	ToStatus   Status
	Event      string
	Actor      string
	Reason     string
}

// Update carries optional field updates applied under optimistic
// version checking. Nil fields are left unchanged. ClearError resets
// last_error; SetError overwrites it. A non-nil Transition sets the
// status and appends its history entry in the same transaction.
type Update struct {
	DocType        *DocType
	Classification *Classification
	Match          *MatchResult
	PartyID        *uuid.UUID
	ClearParty     bool
	DocumentNumber *string
	Amount         *float64
	SetError       *string
	ClearError     bool
	Transition     *TransitionRecord
}

// DuplicateQuery describes a potential-duplicate lookup: same party and
// document number within the lookback window, excluding the document
// being evaluated.
type DuplicateQuery struct {
	PartyID        uuid.UUID
	DocumentNumber string
	Since          time.Time
	ExcludeID      uuid.UUID
}
