package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/internal/automation"
	"github.com/courier-labs/courier/internal/classify"
	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/erp"
	"github.com/courier-labs/courier/internal/match"
	"github.com/courier-labs/courier/internal/parties"
	"github.com/courier-labs/courier/internal/workflow"
	"github.com/courier-labs/courier/pkg/formatting"
)

// reprocessable lists the statuses a reprocess may re-enter from.
// States beyond the automation gate belong to humans (approval, review,
// triage completion) and are never recomputed.
var reprocessable = map[documents.Status]bool{
	documents.StatusCaptured:            true,
	documents.StatusClassified:          true,
	documents.StatusExtracted:           true,
	documents.StatusVendorPending:       true,
	documents.StatusERPValidationPend:   true,
	documents.StatusERPValidationFailed: true,
	documents.StatusValidationPending:   true,
	documents.StatusValidationFailed:    true,
	documents.StatusFailed:              true,
	documents.StatusTriagePending:       true,
}

func (s *service) Transition(ctx context.Context, id uuid.UUID, req TransitionRequest) (*documents.Document, error) {
	event := workflow.Event(strings.TrimSpace(req.Event))
	if event == "" {
		return nil, fmt.Errorf("%w: event is required", ErrInvalidBody)
	}
	actor := orActor(req.Actor)

	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.documents.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	machine, err := workflow.MachineFor(doc.DocType)
	if err != nil {
		return nil, err
	}

	hasERP, err := s.documents.HasExternalRef(ctx, id, documents.RefSystemERP)
	if err != nil {
		return nil, err
	}
	hasInvoice, err := s.documents.HasExternalRef(ctx, id, documents.RefSystemInvoice)
	if err != nil {
		return nil, err
	}

	in := guardInput(doc, hasERP || req.ERPRef != "", hasInvoice || req.InvoiceRef != "")
	tr, err := machine.Apply(doc.Status, event, in)
	if err != nil {
		return nil, err
	}

	if req.ERPRef != "" {
		if err := s.documents.AddExternalRef(ctx, id, documents.RefSystemERP, req.ERPRef); err != nil {
			return nil, err
		}
	}
	if req.InvoiceRef != "" {
		if err := s.documents.AddExternalRef(ctx, id, documents.RefSystemInvoice, req.InvoiceRef); err != nil {
			return nil, err
		}
	}

	upd := documents.Update{Transition: record(tr, actor, req.Reason)}
	if event == workflow.EventResume || event == workflow.EventRevalidate {
		upd.ClearError = true
	}

	doc, err = s.apply(ctx, doc, upd)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, doc, string(event), actor)
	return doc, nil
}

func (s *service) Reprocess(ctx context.Context, id uuid.UUID, req ReprocessRequest) (*documents.Document, error) {
	actor := orActor(req.Actor)

	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.documents.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	current, err := workflow.MachineFor(doc.DocType)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal(doc.Status) {
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, doc.Status)
	}
	if !reprocessable[doc.Status] {
		return nil, fmt.Errorf("%w: %s", ErrNotReprocessable, doc.Status)
	}

	before := snapshot(doc)

	cls := s.classifier.Classify(ctx, doc.RawFields, doc.SourceMetadata)
	s.metrics.RecordClassification(cls.Method, string(cls.SuggestedType))

	// an automated type change is only allowed out of OTHER; anything
	// else requires the explicit reclassify operation
	docType := doc.DocType
	if docType == documents.TypeOther && cls.SuggestedType != documents.TypeOther {
		docType = cls.SuggestedType
	}

	machine, err := workflow.MachineFor(docType)
	if err != nil {
		return nil, err
	}

	// manual overrides survive reprocessing
	var m documents.MatchResult
	if doc.Match != nil && doc.Match.Method == match.MethodManual {
		m = *doc.Match
	} else {
		m = s.resolveMatch(ctx, doc.RawFields)
	}
	s.metrics.RecordMatch(m.Method)

	number := formatting.FieldString(doc.RawFields, numberKeys...)
	amount, hasAmount := formatting.FieldFloat(doc.RawFields, amountKeys...)

	upd := documents.Update{
		Classification: &cls,
		Match:          &m,
		ClearError:     true,
	}
	if docType != doc.DocType {
		upd.DocType = &docType
	}
	if m.PartyID != nil {
		upd.PartyID = m.PartyID
	} else if doc.PartyID != nil {
		upd.ClearParty = true
	}
	if number != "" {
		upd.DocumentNumber = &number
	}
	if hasAmount {
		upd.Amount = &amount
	}

	target, detail, err := s.reprocessTarget(ctx, doc, machine, docType, cls, m, number, amount, hasAmount, &upd)
	if err != nil {
		return nil, err
	}

	if err := machine.Reenter(doc.Status, target); err != nil {
		return nil, err
	}

	upd.Transition = &documents.TransitionRecord{
		FromStatus: doc.Status,
		ToStatus:   target,
		Event:      string(workflow.EventReprocess),
		Actor:      actor,
		Reason:     reprocessReason(before, cls, m, detail),
	}

	doc, err = s.apply(ctx, doc, upd)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, doc, string(workflow.EventReprocess), actor)
	return doc, nil
}

// reprocessTarget computes where the document re-enters its machine. A
// document with an existing ERP reference positions directly at the
// machine's validation state without touching the connector; otherwise
// gated machines re-run the gate, executing its action when approved.
func (s *service) reprocessTarget(
	ctx context.Context,
	doc *documents.Document,
	machine *workflow.Machine,
	docType documents.DocType,
	cls documents.Classification,
	m documents.MatchResult,
	number string,
	amount float64,
	hasAmount bool,
	upd *documents.Update,
) (documents.Status, string, error) {
	target, ok := machine.Target(documents.StatusCaptured, workflow.EventClassify)
	if !ok {
		return "", "", fmt.Errorf("%w: %s defines no intake transition", ErrNotReprocessable, machine.Name)
	}

	if _, gated := machine.Target(documents.StatusExtracted, workflow.EventHold); !gated {
		return target, "", nil
	}

	hasRef, err := s.documents.HasExternalRef(ctx, doc.ID, documents.RefSystemERP)
	if err != nil {
		return "", "", err
	}
	if hasRef {
		switch {
		case machine.Contains(documents.StatusERPValidationPend):
			return documents.StatusERPValidationPend, "erp reference already recorded", nil
		case machine.Contains(documents.StatusValidationPending):
			return documents.StatusValidationPending, "erp reference already recorded", nil
		}
	}

	in := automation.DecideInput{
		Level:         s.automation.LevelFor(docType),
		Confidence:    cls.Confidence,
		MatchScore:    m.Score,
		PartyResolved: m.PartyID != nil,
		Thresholds:    s.automation.GateThresholds(),
	}
	if m.PartyID != nil && number != "" {
		dup, err := s.documents.HasDuplicate(ctx, documents.DuplicateQuery{
			PartyID:        *m.PartyID,
			DocumentNumber: number,
			Since:          time.Now().Add(-s.automation.LookbackDuration()),
			ExcludeID:      doc.ID,
		})
		if err != nil {
			return "", "", err
		}
		in.DuplicateFound = dup
	}

	decision := automation.Decide(in)
	s.metrics.RecordGateDecision(string(decision.Action), string(docType))

	if decision.Action == automation.ActionHold {
		target, _ = machine.Target(documents.StatusExtracted, workflow.EventHold)
		return target, decision.Reason, nil
	}

	req := erp.Request{
		DocumentID:     doc.ID,
		DocType:        docType,
		DocumentNumber: number,
		Fields:         doc.RawFields,
	}
	if m.PartyID != nil {
		req.PartyID = *m.PartyID
	}
	if hasAmount {
		req.Amount = &amount
	}

	ref, err := s.callERP(ctx, req, decision.Action)
	if err != nil {
		msg := fmt.Sprintf("erp %s: %v", decision.Action, err)
		upd.ClearError = false
		upd.SetError = &msg
		return documents.StatusFailed, msg, nil
	}

	if err := s.documents.AddExternalRef(ctx, doc.ID, ref.System, ref.Ref); err != nil {
		return "", "", err
	}

	target, _ = machine.Target(documents.StatusExtracted, decision.Event)
	return target, decision.Reason, nil
}

func (s *service) OverrideMatch(ctx context.Context, id uuid.UUID, req OverrideMatchRequest) (*documents.Document, error) {
	if req.PartyID == uuid.Nil {
		return nil, fmt.Errorf("%w: party_id is required", ErrInvalidBody)
	}
	actor := orActor(req.Actor)

	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.documents.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	machine, err := workflow.MachineFor(doc.DocType)
	if err != nil {
		return nil, err
	}
	if machine.IsTerminal(doc.Status) {
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, doc.Status)
	}

	party, err := s.parties.Find(ctx, req.PartyID)
	if err != nil {
		if errors.Is(err, parties.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPartyNotFound, req.PartyID)
		}
		return nil, err
	}

	m := documents.MatchResult{Method: match.MethodManual, Score: 1.0, PartyID: &req.PartyID}
	s.metrics.RecordMatch(m.Method)

	s.learnAlias(ctx, doc, party, actor)

	reason := req.Reason
	if reason == "" {
		reason = fmt.Sprintf("match overridden to party %s (%s)", party.Number, party.Name)
	}

	doc, err = s.apply(ctx, doc, documents.Update{
		Match:   &m,
		PartyID: &req.PartyID,
		Transition: &documents.TransitionRecord{
			FromStatus: doc.Status,
			ToStatus:   doc.Status,
			Event:      string(workflow.EventOverrideMatch),
			Actor:      actor,
			Reason:     reason,
		},
	})
	if err != nil {
		return nil, err
	}

	// a document held for vendor matching can now proceed
	if doc.Status == documents.StatusVendorPending {
		doc, err = s.releaseHold(ctx, doc, machine)
		if err != nil {
			return nil, err
		}
	}

	s.publish(ctx, doc, string(workflow.EventOverrideMatch), actor)
	return doc, nil
}

// releaseHold re-runs the gate for a document parked in vendor_pending
// after its party was resolved manually. When the gate approves an
// action, the ERP side effect runs and the document advances along the
// machine's vendor_pending edge; otherwise it stays held.
func (s *service) releaseHold(ctx context.Context, doc *documents.Document, machine *workflow.Machine) (*documents.Document, error) {
	in, err := s.gateInput(ctx, doc)
	if err != nil {
		return nil, err
	}

	decision := automation.Decide(in)
	s.metrics.RecordGateDecision(string(decision.Action), string(doc.DocType))

	if decision.Action == automation.ActionHold {
		s.logger.Info("document stays held after match override",
			"document_id", doc.ID,
			"reason", decision.Reason,
		)
		return doc, nil
	}

	ref, err := s.callERP(ctx, erpRequest(doc), decision.Action)
	if err != nil {
		// no fail edge from vendor_pending; stay held with the error recorded
		msg := fmt.Sprintf("erp %s: %v", decision.Action, err)
		s.logger.Error("hold release failed", "document_id", doc.ID, "error", msg)
		return s.apply(ctx, doc, documents.Update{SetError: &msg})
	}

	if err := s.documents.AddExternalRef(ctx, doc.ID, ref.System, ref.Ref); err != nil {
		return nil, err
	}

	events := machine.EventsFrom(documents.StatusVendorPending)
	if len(events) == 0 {
		return doc, nil
	}

	tr, err := machine.Apply(doc.Status, events[0], guardInput(doc, true, false))
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, doc, documents.Update{
		ClearError: true,
		Transition: record(tr, actorPipeline, decision.Reason),
	})
}

// learnAlias records the document's name field as an alias for the
// chosen party. Learning is best effort: an alias that already exists
// or an empty name never blocks the override.
func (s *service) learnAlias(ctx context.Context, doc *documents.Document, party *parties.Party, actor string) {
	name := formatting.FieldString(doc.RawFields, "vendor_name", "customer_name")
	if name == "" {
		return
	}

	_, err := s.parties.AddAlias(ctx, party.ID, parties.AliasCommand{
		Alias:     name,
		Score:     1.0,
		CreatedBy: actor,
	})
	switch {
	case err == nil:
		s.logger.Info("alias learned", "party_id", party.ID, "alias", name)
	case errors.Is(err, parties.ErrDuplicateAlias), errors.Is(err, parties.ErrInvalidBody):
	default:
		s.logger.Warn("alias learning failed", "party_id", party.ID, "alias", name, "error", err)
	}
}

func (s *service) Reclassify(ctx context.Context, id uuid.UUID, req ReclassifyRequest) (*documents.Document, error) {
	if !req.DocType.Valid() {
		return nil, fmt.Errorf("%w: %s", documents.ErrInvalidType, req.DocType)
	}
	actor := orActor(req.Actor)

	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.documents.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	current, err := workflow.MachineFor(doc.DocType)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal(doc.Status) {
		return nil, fmt.Errorf("%w: %s", ErrTerminalStatus, doc.Status)
	}
	if req.DocType == doc.DocType {
		return doc, nil
	}

	machine, err := workflow.MachineFor(req.DocType)
	if err != nil {
		return nil, err
	}
	target, _ := machine.Target(documents.StatusCaptured, workflow.EventClassify)

	reason := req.Reason
	if reason == "" {
		reason = fmt.Sprintf("reclassified from %s to %s", doc.DocType, req.DocType)
	}

	doc, err = s.apply(ctx, doc, documents.Update{
		DocType: &req.DocType,
		Transition: &documents.TransitionRecord{
			FromStatus: doc.Status,
			ToStatus:   target,
			Event:      string(workflow.EventReclassify),
			Actor:      actor,
			Reason:     reason,
		},
	})
	if err != nil {
		return nil, err
	}

	// resume the automated stages under the new machine
	doc, err = s.advance(ctx, doc, machine)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, doc, string(workflow.EventReclassify), actor)
	return doc, nil
}

type beforeState struct {
	docType       documents.DocType
	clsMethod     string
	clsConfidence float64
	matchMethod   string
	matchScore    float64
}

func snapshot(doc *documents.Document) beforeState {
	b := beforeState{
		docType:     doc.DocType,
		clsMethod:   classify.MethodNone,
		matchMethod: match.MethodNone,
	}
	if doc.Classification != nil {
		b.clsMethod = doc.Classification.Method
		b.clsConfidence = doc.Classification.Confidence
	}
	if doc.Match != nil {
		b.matchMethod = doc.Match.Method
		b.matchScore = doc.Match.Score
	}
	return b
}

func reprocessReason(before beforeState, cls documents.Classification, m documents.MatchResult, detail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "classification %s (%s %.2f) -> %s (%s %.2f)",
		before.docType, before.clsMethod, before.clsConfidence,
		cls.SuggestedType, cls.Method, cls.Confidence,
	)
	fmt.Fprintf(&b, "; match %s %.2f -> %s %.2f",
		before.matchMethod, before.matchScore, m.Method, m.Score,
	)
	if detail != "" {
		b.WriteString("; ")
		b.WriteString(detail)
	}
	return b.String()
}
