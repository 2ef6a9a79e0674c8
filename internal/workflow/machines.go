package workflow

import (
	"fmt"

	"github.com/courier-labs/courier/internal/documents"
)

var (
	approvalTerminal = []documents.Status{documents.StatusArchived, documents.StatusRejected}
	archiveTerminal  = []documents.Status{documents.StatusArchived}
)

// The six machine families. Document types share a family when their
// lifecycle is identical; MachineFor resolves the family for a type.
var (
	approvalMachine   = newMachine("approval", documents.StatusCaptured, approvalTerminal, approvalTable())
	validationMachine = newMachine("validation", documents.StatusCaptured, approvalTerminal, validationTable())
	linkageMachine    = newMachine("linkage", documents.StatusCaptured, approvalTerminal, linkageTable())
	reviewMachine     = newMachine("review", documents.StatusCaptured, archiveTerminal, reviewTable())
	taggingMachine    = newMachine("tagging", documents.StatusCaptured, archiveTerminal, taggingTable())
	triageMachine     = newMachine("triage", documents.StatusCaptured, archiveTerminal, triageTable())
)

var machines = map[documents.DocType]*Machine{
	documents.TypeAPInvoice:          approvalMachine,
	documents.TypeSalesInvoice:       approvalMachine,
	documents.TypePurchaseOrder:      validationMachine,
	documents.TypePurchaseCreditMemo: linkageMachine,
	documents.TypeSalesCreditMemo:    linkageMachine,
	documents.TypeVendorStatement:    reviewMachine,
	documents.TypeBankStatement:      reviewMachine,
	documents.TypeRemittanceAdvice:   reviewMachine,
	documents.TypeQualityDoc:         taggingMachine,
	documents.TypeOther:              triageMachine,
}

// MachineFor returns the workflow machine governing the given document type.
func MachineFor(t documents.DocType) (*Machine, error) {
	m, ok := machines[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocType, t)
	}
	return m, nil
}

// approvalTable is the full approval lifecycle used by AP and sales
// invoices: classify, extract, route through vendor matching or straight
// to ERP validation, approve, export, archive. External side effects
// happen at extracted (gate actions), erp_validation_pending, and
// approved, so those states can fail.
func approvalTable() map[documents.Status]map[Event]edge {
	return map[documents.Status]map[Event]edge{
		documents.StatusCaptured: {
			EventClassify: {target: documents.StatusClassified},
		},
		documents.StatusClassified: {
			EventExtract: {target: documents.StatusExtracted},
		},
		documents.StatusExtracted: {
			EventHold:        {target: documents.StatusVendorPending},
			EventAutoLink:    {target: documents.StatusERPValidationPend},
			EventCreateDraft: {target: documents.StatusERPValidationPend},
			EventFail:        {target: documents.StatusFailed},
		},
		documents.StatusVendorPending: {
			EventVendorMatched: {target: documents.StatusERPValidationPend, guard: "party-resolved"},
		},
		documents.StatusERPValidationPend: {
			EventValidationPassed: {target: documents.StatusReadyForApproval},
			EventValidationFailed: {target: documents.StatusERPValidationFailed},
			EventFail:             {target: documents.StatusFailed},
		},
		documents.StatusERPValidationFailed: {
			EventRevalidate: {target: documents.StatusERPValidationPend},
		},
		documents.StatusReadyForApproval: {
			EventStartApproval: {target: documents.StatusApprovalInProgress},
		},
		documents.StatusApprovalInProgress: {
			EventApprove: {target: documents.StatusApproved},
			EventReject:  {target: documents.StatusRejected},
		},
		documents.StatusApproved: {
			EventExport: {target: documents.StatusExported, guard: "erp-ref-present"},
			EventFail:   {target: documents.StatusFailed},
		},
		documents.StatusExported: {
			EventArchive: {target: documents.StatusArchived},
		},
		documents.StatusFailed: {
			EventResume: {target: documents.StatusExtracted},
		},
	}
}

// validationTable adapts the approval lifecycle for purchase orders,
// which validate against open order lines instead of posting setups:
// validation_pending/validation_failed replace the ERP validation pair.
func validationTable() map[documents.Status]map[Event]edge {
	return map[documents.Status]map[Event]edge{
		documents.StatusCaptured: {
			EventClassify: {target: documents.StatusClassified},
		},
		documents.StatusClassified: {
			EventExtract: {target: documents.StatusExtracted},
		},
		documents.StatusExtracted: {
			EventHold:        {target: documents.StatusVendorPending},
			EventAutoLink:    {target: documents.StatusValidationPending},
			EventCreateDraft: {target: documents.StatusValidationPending},
			EventFail:        {target: documents.StatusFailed},
		},
		documents.StatusVendorPending: {
			EventSubmitValidation: {target: documents.StatusValidationPending, guard: "party-resolved"},
		},
		documents.StatusValidationPending: {
			EventValidationPassed: {target: documents.StatusReadyForApproval},
			EventValidationFailed: {target: documents.StatusValidationFailed},
			EventFail:             {target: documents.StatusFailed},
		},
		documents.StatusValidationFailed: {
			EventRevalidate: {target: documents.StatusValidationPending},
		},
		documents.StatusReadyForApproval: {
			EventStartApproval: {target: documents.StatusApprovalInProgress},
		},
		documents.StatusApprovalInProgress: {
			EventApprove: {target: documents.StatusApproved},
			EventReject:  {target: documents.StatusRejected},
		},
		documents.StatusApproved: {
			EventExport: {target: documents.StatusExported, guard: "erp-ref-present"},
			EventFail:   {target: documents.StatusFailed},
		},
		documents.StatusExported: {
			EventArchive: {target: documents.StatusArchived},
		},
		documents.StatusFailed: {
			EventResume: {target: documents.StatusExtracted},
		},
	}
}

// linkageTable extends the approval lifecycle for credit memos, which
// may pass through linked_to_invoice before export when the offsetting
// invoice is located.
func linkageTable() map[documents.Status]map[Event]edge {
	table := approvalTable()
	table[documents.StatusApproved][EventLinkInvoice] = edge{
		target: documents.StatusLinkedToInvoice,
		guard:  "invoice-located",
	}
	table[documents.StatusLinkedToInvoice] = map[Event]edge{
		EventExport: {target: documents.StatusExported, guard: "erp-ref-present"},
		EventFail:   {target: documents.StatusFailed},
	}
	return table
}

// reviewTable is the fast path for statements and remittance advice:
// no extraction, no ERP interaction, a human reviews and archives.
func reviewTable() map[documents.Status]map[Event]edge {
	return map[documents.Status]map[Event]edge{
		documents.StatusCaptured: {
			EventClassify: {target: documents.StatusReadyForReview},
		},
		documents.StatusReadyForReview: {
			EventReview: {target: documents.StatusReviewed},
		},
		documents.StatusReviewed: {
			EventArchive: {target: documents.StatusArchived},
		},
	}
}

// taggingTable routes quality documentation through tagging and review.
func taggingTable() map[documents.Status]map[Event]edge {
	return map[documents.Status]map[Event]edge{
		documents.StatusCaptured: {
			EventClassify: {target: documents.StatusTagged},
		},
		documents.StatusTagged: {
			EventStartReview: {target: documents.StatusReviewInProgress},
		},
		documents.StatusReviewInProgress: {
			EventArchive: {target: documents.StatusArchived},
		},
	}
}

// triageTable holds unclassifiable documents for manual triage.
func triageTable() map[documents.Status]map[Event]edge {
	return map[documents.Status]map[Event]edge{
		documents.StatusCaptured: {
			EventClassify: {target: documents.StatusTriagePending},
		},
		documents.StatusTriagePending: {
			EventCompleteTriage: {target: documents.StatusTriageCompleted},
		},
		documents.StatusTriageCompleted: {
			EventArchive: {target: documents.StatusArchived},
		},
	}
}
