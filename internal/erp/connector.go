// Package erp defines the port through which gate decisions reach the
// ERP system. The pipeline calls it for auto-link and create-draft
// actions; validation outcomes flow back in through the transition
// endpoint, not through this port.
package erp

import (
	"context"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/internal/documents"
)

// Request carries the document facts a connector needs to address the
// counterpart record in the ERP system.
type Request struct {
	DocumentID     uuid.UUID
	DocType        documents.DocType
	PartyID        uuid.UUID
	DocumentNumber string
	Amount         *float64
	Fields         map[string]any
}

// Ref identifies the record a connector touched or created.
type Ref struct {
	System string `json:"system"`
	Ref    string `json:"ref"`
}

// Connector is implemented per ERP backend. Both operations must be
// idempotent with respect to the returned ref: the pipeline records the
// ref once and never calls again for the same document while the ref
// exists.
type Connector interface {
	Link(ctx context.Context, req Request) (Ref, error)
	CreateDraft(ctx context.Context, req Request) (Ref, error)
}
