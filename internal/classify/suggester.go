package classify

import (
	"context"

	"github.com/courier-labs/courier/internal/documents"
)

// Suggestion is a model-produced document type with its confidence.
type Suggestion struct {
	DocType    documents.DocType `json:"doc_type"`
	Confidence float64           `json:"confidence"`
}

// Suggester is the port through which the engine consults a model when
// the deterministic strategies cannot classify a document. Adapters
// own their transport, timeouts, and rate limiting.
type Suggester interface {
	Suggest(ctx context.Context, fields map[string]any, meta map[string]string) (*Suggestion, error)
}
