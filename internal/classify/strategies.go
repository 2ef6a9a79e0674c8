package classify

import (
	"strings"

	"github.com/courier-labs/courier/internal/documents"
)

// sourceCodes maps provenance transaction codes (X12-style, stamped by
// upstream EDI and scanning channels) to document types. A code hit is
// authoritative: confidence 1.0.
var sourceCodes = map[string]documents.DocType{
	"810": documents.TypeAPInvoice,
	"812": documents.TypePurchaseCreditMemo,
	"820": documents.TypeRemittanceAdvice,
	"821": documents.TypeBankStatement,
	"850": documents.TypePurchaseOrder,
}

// mailboxCategories maps ingest mailbox routing categories to document
// types. Categories are operator-curated, so a hit is authoritative.
var mailboxCategories = map[string]documents.DocType{
	"ap-invoices":     documents.TypeAPInvoice,
	"sales-invoices":  documents.TypeSalesInvoice,
	"purchase-orders": documents.TypePurchaseOrder,
	"vendor-credits":  documents.TypePurchaseCreditMemo,
	"sales-credits":   documents.TypeSalesCreditMemo,
	"statements":      documents.TypeVendorStatement,
	"bank":            documents.TypeBankStatement,
	"remittance":      documents.TypeRemittanceAdvice,
	"quality":         documents.TypeQualityDoc,
}

// fieldRule classifies by the shape of the extracted fields. Rules are
// evaluated in order; the first match wins with the rule's confidence.
type fieldRule struct {
	docType    documents.DocType
	confidence float64
	match      func(fields map[string]any) bool
}

var fieldRules = []fieldRule{
	{
		docType:    documents.TypePurchaseCreditMemo,
		confidence: 0.9,
		match: func(f map[string]any) bool {
			return hasField(f, "credit_memo_number") && hasField(f, "vendor_name", "vendor_number")
		},
	},
	{
		docType:    documents.TypeSalesCreditMemo,
		confidence: 0.9,
		match: func(f map[string]any) bool {
			return hasField(f, "credit_memo_number") && hasField(f, "customer_name", "customer_number")
		},
	},
	{
		docType:    documents.TypeAPInvoice,
		confidence: 0.9,
		match: func(f map[string]any) bool {
			return hasField(f, "invoice_number") && hasField(f, "vendor_name", "vendor_number")
		},
	},
	{
		docType:    documents.TypeSalesInvoice,
		confidence: 0.9,
		match: func(f map[string]any) bool {
			return hasField(f, "invoice_number") && hasField(f, "customer_name", "customer_number")
		},
	},
	{
		docType:    documents.TypePurchaseOrder,
		confidence: 0.85,
		match: func(f map[string]any) bool {
			return hasField(f, "order_number") && hasField(f, "vendor_name", "vendor_number")
		},
	},
	{
		docType:    documents.TypeBankStatement,
		confidence: 0.85,
		match: func(f map[string]any) bool {
			return hasField(f, "iban", "account_number") && hasField(f, "closing_balance")
		},
	},
	{
		docType:    documents.TypeRemittanceAdvice,
		confidence: 0.85,
		match: func(f map[string]any) bool {
			return hasField(f, "payment_reference") && hasField(f, "paid_amount")
		},
	},
	{
		docType:    documents.TypeVendorStatement,
		confidence: 0.8,
		match: func(f map[string]any) bool {
			return hasField(f, "statement_date") && hasField(f, "vendor_name", "vendor_number")
		},
	},
	{
		docType:    documents.TypeQualityDoc,
		confidence: 0.8,
		match: func(f map[string]any) bool {
			return hasField(f, "certificate_number", "batch_number") && hasField(f, "inspection_date")
		},
	},
}

// hasField reports whether any of the keys is present with a non-empty
// value.
func hasField(fields map[string]any, keys ...string) bool {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return true
	}
	return false
}
