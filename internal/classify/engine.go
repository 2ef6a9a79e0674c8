// Package classify determines a document's type from its provenance
// metadata and extracted fields. Deterministic strategies run in a
// fixed order; a model suggestion is consulted only when they yield
// OTHER, and accepted only at or above a confidence threshold. The
// attempted suggestion is recorded either way.
package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/courier-labs/courier/internal/documents"
)

// DefaultAIThreshold is the minimum model confidence accepted when the
// configuration does not override it.
const DefaultAIThreshold = 0.8

// Classification methods recorded in results.
const (
	MethodSourceCode      = "source-code"
	MethodMailboxCategory = "mailbox-category"
	MethodFieldPattern    = "field-pattern"
	MethodAIModel         = "ai-model"
	MethodNone            = "none"
)

// Engine classifies documents. Safe for concurrent use.
type Engine struct {
	suggester   Suggester
	aiThreshold float64
	logger      *slog.Logger
}

// NewEngine creates an Engine. The suggester may be nil, in which case
// unclassifiable documents stay OTHER. A non-positive threshold falls
// back to DefaultAIThreshold.
func NewEngine(suggester Suggester, aiThreshold float64, logger *slog.Logger) *Engine {
	if aiThreshold <= 0 {
		aiThreshold = DefaultAIThreshold
	}
	return &Engine{
		suggester:   suggester,
		aiThreshold: aiThreshold,
		logger:      logger.With("system", "classify"),
	}
}

// Classify runs the strategy chain over the extracted fields and source
// metadata. It never fails: any strategy error degrades to OTHER with
// confidence 0. Given identical inputs and identical suggester answers,
// the result is identical.
func (e *Engine) Classify(ctx context.Context, fields map[string]any, meta map[string]string) documents.Classification {
	if code := meta["source_code"]; code != "" {
		if t, ok := sourceCodes[code]; ok {
			return documents.Classification{
				Method:        MethodSourceCode,
				Confidence:    1.0,
				SuggestedType: t,
			}
		}
	}

	if category := meta["mailbox_category"]; category != "" {
		if t, ok := mailboxCategories[strings.ToLower(category)]; ok {
			return documents.Classification{
				Method:        MethodMailboxCategory,
				Confidence:    1.0,
				SuggestedType: t,
			}
		}
	}

	for _, rule := range fieldRules {
		if rule.match(fields) {
			return documents.Classification{
				Method:        MethodFieldPattern,
				Confidence:    rule.confidence,
				SuggestedType: rule.docType,
			}
		}
	}

	result := documents.Classification{
		Method:        MethodNone,
		Confidence:    0,
		SuggestedType: documents.TypeOther,
	}

	if e.suggester == nil {
		return result
	}

	suggestion, err := e.suggester.Suggest(ctx, fields, meta)
	if err != nil {
		e.logger.Warn("model suggestion failed", "error", err)
		return result
	}
	if suggestion == nil {
		return result
	}

	result.AISuggestedType = &suggestion.DocType
	result.AIConfidence = &suggestion.Confidence

	if !suggestion.DocType.Valid() {
		e.logger.Warn("model suggested unknown type", "doc_type", suggestion.DocType)
		return result
	}

	if suggestion.DocType != documents.TypeOther && suggestion.Confidence >= e.aiThreshold {
		result.Method = MethodAIModel
		result.Confidence = suggestion.Confidence
		result.SuggestedType = suggestion.DocType
	}

	return result
}
