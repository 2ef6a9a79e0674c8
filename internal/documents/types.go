package documents

import (
	"slices"

	"github.com/google/uuid"
)

// DocType identifies the business document category. Assigned by
// classification at intake; changed afterwards only through the explicit
// reclassify operation.
type DocType string

// Document type enum.
const (
	TypeAPInvoice          DocType = "AP_INVOICE"
	TypeSalesInvoice       DocType = "SALES_INVOICE"
	TypePurchaseOrder      DocType = "PURCHASE_ORDER"
	TypePurchaseCreditMemo DocType = "PURCHASE_CREDIT_MEMO"
	TypeSalesCreditMemo    DocType = "SALES_CREDIT_MEMO"
	TypeVendorStatement    DocType = "VENDOR_STATEMENT"
	TypeBankStatement      DocType = "BANK_STATEMENT"
	TypeRemittanceAdvice   DocType = "REMITTANCE_ADVICE"
	TypeQualityDoc         DocType = "QUALITY_DOC"
	TypeOther              DocType = "OTHER"
)

// DocTypes lists every document type in declaration order.
var DocTypes = []DocType{
	TypeAPInvoice,
	TypeSalesInvoice,
	TypePurchaseOrder,
	TypePurchaseCreditMemo,
	TypeSalesCreditMemo,
	TypeVendorStatement,
	TypeBankStatement,
	TypeRemittanceAdvice,
	TypeQualityDoc,
	TypeOther,
}

// Valid reports whether the type is a member of the enum.
func (t DocType) Valid() bool {
	return slices.Contains(DocTypes, t)
}

// Status is a workflow state. The set of statuses valid for a document
// is defined by its type's workflow machine.
type Status string

// Workflow statuses across all machines.
const (
	StatusCaptured            Status = "captured"
	StatusClassified          Status = "classified"
	StatusExtracted           Status = "extracted"
	StatusVendorPending       Status = "vendor_pending"
	StatusERPValidationPend   Status = "erp_validation_pending"
	StatusERPValidationFailed Status = "erp_validation_failed"
	StatusValidationPending   Status = "validation_pending"
	StatusValidationFailed    Status = "validation_failed"
	StatusReadyForApproval    Status = "ready_for_approval"
	StatusApprovalInProgress  Status = "approval_in_progress"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
	StatusLinkedToInvoice     Status = "linked_to_invoice"
	StatusExported            Status = "exported"
	StatusReadyForReview      Status = "ready_for_review"
	StatusReviewed            Status = "reviewed"
	StatusTagged              Status = "tagged"
	StatusReviewInProgress    Status = "review_in_progress"
	StatusTriagePending       Status = "triage_pending"
	StatusTriageCompleted     Status = "triage_completed"
	StatusArchived            Status = "archived"
	StatusFailed              Status = "failed"
)

// Classification records how a document type was determined. The AI
// sub-fields capture an attempted model suggestion even when it was
// rejected for low confidence.
type Classification struct {
	Method          string   `json:"method"`
	Confidence      float64  `json:"confidence"`
	SuggestedType   DocType  `json:"suggested_type"`
	AISuggestedType *DocType `json:"ai_suggested_type,omitempty"`
	AIConfidence    *float64 `json:"ai_confidence,omitempty"`
}

// MatchResult records how a document was resolved to a party.
type MatchResult struct {
	Method  string     `json:"method"`
	Score   float64    `json:"score"`
	PartyID *uuid.UUID `json:"party_id,omitempty"`
}
