package classify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/courier-labs/courier/internal/classify"
	"github.com/courier-labs/courier/internal/documents"
)

type stubSuggester struct {
	suggestion *classify.Suggestion
	err        error
	calls      int
}

func (s *stubSuggester) Suggest(context.Context, map[string]any, map[string]string) (*classify.Suggestion, error) {
	s.calls++
	return s.suggestion, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassifyStrategyOrder(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]any
		meta       map[string]string
		wantMethod string
		wantType   documents.DocType
		wantConf   float64
	}{
		{
			"source code wins over everything",
			map[string]any{"invoice_number": "INV-1", "vendor_name": "Acme"},
			map[string]string{"source_code": "850", "mailbox_category": "ap-invoices"},
			classify.MethodSourceCode,
			documents.TypePurchaseOrder,
			1.0,
		},
		{
			"mailbox category beats field patterns",
			map[string]any{"invoice_number": "INV-1", "vendor_name": "Acme"},
			map[string]string{"mailbox_category": "statements"},
			classify.MethodMailboxCategory,
			documents.TypeVendorStatement,
			1.0,
		},
		{
			"mailbox category is case insensitive",
			nil,
			map[string]string{"mailbox_category": "Remittance"},
			classify.MethodMailboxCategory,
			documents.TypeRemittanceAdvice,
			1.0,
		},
		{
			"ap invoice field pattern",
			map[string]any{"invoice_number": "INV-1", "vendor_name": "Acme"},
			nil,
			classify.MethodFieldPattern,
			documents.TypeAPInvoice,
			0.9,
		},
		{
			"sales invoice field pattern",
			map[string]any{"invoice_number": "INV-1", "customer_number": "C-9"},
			nil,
			classify.MethodFieldPattern,
			documents.TypeSalesInvoice,
			0.9,
		},
		{
			"credit memo outranks invoice rule",
			map[string]any{
				"credit_memo_number": "CM-1",
				"invoice_number":     "INV-1",
				"vendor_name":        "Acme",
			},
			nil,
			classify.MethodFieldPattern,
			documents.TypePurchaseCreditMemo,
			0.9,
		},
		{
			"bank statement field pattern",
			map[string]any{"iban": "DE02", "closing_balance": 10432.10},
			nil,
			classify.MethodFieldPattern,
			documents.TypeBankStatement,
			0.85,
		},
		{
			"empty strings do not count as fields",
			map[string]any{"invoice_number": "  ", "vendor_name": "Acme"},
			nil,
			classify.MethodNone,
			documents.TypeOther,
			0,
		},
		{
			"unknown source code falls through",
			nil,
			map[string]string{"source_code": "999"},
			classify.MethodNone,
			documents.TypeOther,
			0,
		},
	}

	engine := classify.NewEngine(nil, classify.DefaultAIThreshold, discard())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Classify(context.Background(), tt.fields, tt.meta)

			if got.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", got.Method, tt.wantMethod)
			}
			if got.SuggestedType != tt.wantType {
				t.Errorf("SuggestedType = %q, want %q", got.SuggestedType, tt.wantType)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestClassifyAIAcceptance(t *testing.T) {
	tests := []struct {
		name       string
		suggestion *classify.Suggestion
		err        error
		wantMethod string
		wantType   documents.DocType
	}{
		{
			"accepted at threshold",
			&classify.Suggestion{DocType: documents.TypeAPInvoice, Confidence: 0.8},
			nil,
			classify.MethodAIModel,
			documents.TypeAPInvoice,
		},
		{
			"rejected below threshold",
			&classify.Suggestion{DocType: documents.TypeAPInvoice, Confidence: 0.79},
			nil,
			classify.MethodNone,
			documents.TypeOther,
		},
		{
			"other suggestion never accepted",
			&classify.Suggestion{DocType: documents.TypeOther, Confidence: 0.99},
			nil,
			classify.MethodNone,
			documents.TypeOther,
		},
		{
			"invalid type rejected",
			&classify.Suggestion{DocType: "RECEIPT", Confidence: 0.95},
			nil,
			classify.MethodNone,
			documents.TypeOther,
		},
		{
			"suggester failure degrades to other",
			nil,
			errors.New("model timeout"),
			classify.MethodNone,
			documents.TypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubSuggester{suggestion: tt.suggestion, err: tt.err}
			engine := classify.NewEngine(stub, classify.DefaultAIThreshold, discard())

			got := engine.Classify(context.Background(), map[string]any{"body": "unstructured"}, nil)

			if got.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", got.Method, tt.wantMethod)
			}
			if got.SuggestedType != tt.wantType {
				t.Errorf("SuggestedType = %q, want %q", got.SuggestedType, tt.wantType)
			}
			if stub.calls != 1 {
				t.Errorf("suggester calls = %d, want 1", stub.calls)
			}
			if tt.err == nil && tt.suggestion != nil {
				if got.AISuggestedType == nil || *got.AISuggestedType != tt.suggestion.DocType {
					t.Error("attempted suggestion not recorded")
				}
				if got.AIConfidence == nil || *got.AIConfidence != tt.suggestion.Confidence {
					t.Error("attempted confidence not recorded")
				}
			}
		})
	}
}

func TestClassifySkipsSuggesterOnDeterministicHit(t *testing.T) {
	stub := &stubSuggester{suggestion: &classify.Suggestion{DocType: documents.TypeQualityDoc, Confidence: 0.99}}
	engine := classify.NewEngine(stub, classify.DefaultAIThreshold, discard())

	got := engine.Classify(context.Background(), nil, map[string]string{"source_code": "810"})

	if got.Method != classify.MethodSourceCode {
		t.Fatalf("Method = %q, want %q", got.Method, classify.MethodSourceCode)
	}
	if stub.calls != 0 {
		t.Errorf("suggester calls = %d, want 0", stub.calls)
	}
}

func TestClassifyDeterminism(t *testing.T) {
	engine := classify.NewEngine(nil, classify.DefaultAIThreshold, discard())
	fields := map[string]any{"order_number": "PO-77", "vendor_number": "V-12"}
	meta := map[string]string{"channel": "sftp"}

	first := engine.Classify(context.Background(), fields, meta)
	second := engine.Classify(context.Background(), fields, meta)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Classify() not deterministic: %+v vs %+v", first, second)
	}
}
