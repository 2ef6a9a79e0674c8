package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/courier-labs/courier/internal/automation"
	"github.com/courier-labs/courier/internal/classify"
	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/erp"
	"github.com/courier-labs/courier/internal/match"
	"github.com/courier-labs/courier/internal/parties"
	"github.com/courier-labs/courier/internal/pipeline"
	"github.com/courier-labs/courier/pkg/lifecycle"
	"github.com/courier-labs/courier/pkg/pagination"
	"github.com/courier-labs/courier/pkg/queue"
	"github.com/courier-labs/courier/pkg/resilience"
	"github.com/courier-labs/courier/pkg/storage"
)

var vendorID = uuid.MustParse("11111111-1111-1111-1111-111111111111")

// fakeDocuments is an in-memory documents.System with the same create,
// versioned-update, and external-ref semantics as the SQL repository.
type fakeDocuments struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*documents.Document
	history   map[uuid.UUID][]documents.HistoryEntry
	refs      map[uuid.UUID][]documents.ExternalRef
	createErr error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{
		docs:    make(map[uuid.UUID]*documents.Document),
		history: make(map[uuid.UUID][]documents.HistoryEntry),
		refs:    make(map[uuid.UUID][]documents.ExternalRef),
	}
}

func (f *fakeDocuments) Handler() *documents.Handler { return nil }

func (f *fakeDocuments) List(context.Context, pagination.PageRequest, documents.Filters) (*pagination.PageResult[documents.Document], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDocuments) Find(_ context.Context, id uuid.UUID) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (f *fakeDocuments) Create(_ context.Context, cmd documents.CreateCommand) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	id := uuid.New()
	if cmd.ID != nil {
		id = *cmd.ID
	}
	if _, exists := f.docs[id]; exists {
		return nil, documents.ErrConflict
	}

	actor := cmd.Actor
	if actor == "" {
		actor = "system"
	}
	meta := cmd.SourceMetadata
	if meta == nil {
		meta = map[string]string{}
	}
	fields := cmd.RawFields
	if fields == nil {
		fields = map[string]any{}
	}

	now := time.Now().UTC()
	doc := &documents.Document{
		ID:             id,
		DocType:        documents.TypeOther,
		Source:         cmd.Source,
		SourceMetadata: meta,
		RawFields:      fields,
		Status:         documents.StatusCaptured,
		DocumentNumber: cmd.DocumentNumber,
		Amount:         cmd.Amount,
		Filename:       cmd.Filename,
		ContentType:    cmd.ContentType,
		SizeBytes:      cmd.SizeBytes,
		PageCount:      cmd.PageCount,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.docs[id] = doc
	f.history[id] = append(f.history[id], documents.HistoryEntry{
		ID:         int64(len(f.history[id]) + 1),
		DocumentID: id,
		ToStatus:   documents.StatusCaptured,
		Event:      "intake",
		Actor:      actor,
		OccurredAt: now,
	})

	out := *doc
	return &out, nil
}

func (f *fakeDocuments) Update(_ context.Context, id uuid.UUID, version int, upd documents.Update) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	if doc.Version != version {
		return nil, documents.ErrConflict
	}

	if upd.DocType != nil {
		doc.DocType = *upd.DocType
	}
	if upd.Classification != nil {
		doc.Classification = upd.Classification
	}
	if upd.Match != nil {
		doc.Match = upd.Match
	}
	switch {
	case upd.ClearParty:
		doc.PartyID = nil
	case upd.PartyID != nil:
		doc.PartyID = upd.PartyID
	}
	if upd.DocumentNumber != nil {
		doc.DocumentNumber = upd.DocumentNumber
	}
	if upd.Amount != nil {
		doc.Amount = upd.Amount
	}
	switch {
	case upd.ClearError:
		doc.LastError = nil
	case upd.SetError != nil:
		doc.LastError = upd.SetError
	}
	if upd.Transition != nil {
		doc.Status = upd.Transition.ToStatus
		f.history[id] = append(f.history[id], documents.HistoryEntry{
			ID:         int64(len(f.history[id]) + 1),
			DocumentID: id,
			FromStatus: upd.Transition.FromStatus,
			ToStatus:   upd.Transition.ToStatus,
			Event:      upd.Transition.Event,
			Actor:      upd.Transition.Actor,
			Reason:     upd.Transition.Reason,
			OccurredAt: time.Now().UTC(),
		})
	}
	doc.Version++
	doc.UpdatedAt = time.Now().UTC()

	out := *doc
	return &out, nil
}

func (f *fakeDocuments) History(_ context.Context, id uuid.UUID) ([]documents.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return nil, documents.ErrNotFound
	}
	return append([]documents.HistoryEntry(nil), f.history[id]...), nil
}

func (f *fakeDocuments) ExternalRefs(_ context.Context, id uuid.UUID) ([]documents.ExternalRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return nil, documents.ErrNotFound
	}
	return append([]documents.ExternalRef(nil), f.refs[id]...), nil
}

func (f *fakeDocuments) AddExternalRef(_ context.Context, id uuid.UUID, system, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return documents.ErrNotFound
	}
	for _, r := range f.refs[id] {
		if r.System == system {
			return nil
		}
	}
	f.refs[id] = append(f.refs[id], documents.ExternalRef{
		DocumentID: id,
		System:     system,
		Ref:        ref,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (f *fakeDocuments) HasExternalRef(_ context.Context, id uuid.UUID, system string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.refs[id] {
		if r.System == system {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocuments) HasDuplicate(_ context.Context, q documents.DuplicateQuery) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == q.ExcludeID {
			continue
		}
		if d.PartyID == nil || *d.PartyID != q.PartyID {
			continue
		}
		if d.DocumentNumber == nil || *d.DocumentNumber != q.DocumentNumber {
			continue
		}
		if d.CreatedAt.Before(q.Since) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeDocuments) OpenFile(context.Context, uuid.UUID) (io.ReadCloser, *documents.Document, error) {
	return nil, nil, documents.ErrNoFile
}

// fakeParties is an in-memory parties.System backing the match stages.
type fakeParties struct {
	mu            sync.Mutex
	parties       []parties.Party
	aliases       []parties.Alias
	candidatesErr error
}

func (f *fakeParties) Handler() *parties.Handler { return nil }

func (f *fakeParties) List(context.Context, pagination.PageRequest, parties.Filters) (*pagination.PageResult[parties.Party], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeParties) Find(_ context.Context, id uuid.UUID) (*parties.Party, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.parties {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, parties.ErrNotFound
}

func (f *fakeParties) Create(context.Context, parties.CreateCommand) (*parties.Party, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeParties) Update(context.Context, uuid.UUID, parties.UpdateCommand) (*parties.Party, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeParties) Aliases(_ context.Context, partyID uuid.UUID) ([]parties.Alias, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []parties.Alias
	for _, a := range f.aliases {
		if a.PartyID == partyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeParties) AddAlias(_ context.Context, partyID uuid.UUID, cmd parties.AliasCommand) (*parties.Alias, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	normalized := parties.Normalize(cmd.Alias)
	if normalized == "" {
		return nil, parties.ErrInvalidBody
	}
	for _, a := range f.aliases {
		if a.PartyID == partyID && a.Alias == normalized {
			return nil, parties.ErrDuplicateAlias
		}
	}

	alias := parties.Alias{
		ID:        uuid.New(),
		PartyID:   partyID,
		Alias:     normalized,
		Score:     cmd.Score,
		CreatedBy: cmd.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}
	f.aliases = append(f.aliases, alias)
	return &alias, nil
}

func (f *fakeParties) Candidates(context.Context) ([]parties.Party, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}
	return append([]parties.Party(nil), f.parties...), nil
}

func (f *fakeParties) LearnedAliases(context.Context) ([]parties.Alias, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]parties.Alias(nil), f.aliases...), nil
}

// fakeStorage is an in-memory storage.System.
type fakeStorage struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploadErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: make(map[string][]byte)}
}

func (f *fakeStorage) Start(*lifecycle.Coordinator) error { return nil }

func (f *fakeStorage) Upload(_ context.Context, key string, reader io.Reader, _ storage.UploadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.blobs[key] = data
	return nil
}

func (f *fakeStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.blobs, key)
	return nil
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok, nil
}

// capturingQueue records published events.
type capturingQueue struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (q *capturingQueue) Start(*lifecycle.Coordinator) error { return nil }

func (q *capturingQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subjects = append(q.subjects, subject)
	q.payloads = append(q.payloads, append([]byte(nil), data...))
	return nil
}

func (q *capturingQueue) Subscribe(string, string, queue.MsgHandler) error { return nil }

func (q *capturingQueue) Ready() bool { return true }

type fixture struct {
	svc     pipeline.System
	docs    *fakeDocuments
	parties *fakeParties
	store   *fakeStorage
	erp     *erp.Memory
	queue   *capturingQueue
}

func newFixture(t *testing.T, level automation.Level) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rcfg := &resilience.Config{MaxAttempts: 1}
	if err := rcfg.Finalize(nil); err != nil {
		t.Fatalf("finalize resilience config: %v", err)
	}

	f := &fixture{
		docs:    newFakeDocuments(),
		parties: &fakeParties{},
		store:   newFakeStorage(),
		erp:     erp.NewMemory(),
		queue:   &capturingQueue{},
	}
	f.parties.parties = []parties.Party{{
		ID:     vendorID,
		Number: "V-100",
		Name:   "Acme Industrial Supply",
		Kind:   parties.KindVendor,
		Active: true,
	}}

	f.svc = pipeline.New(pipeline.Deps{
		Documents:  f.docs,
		Parties:    f.parties,
		Classifier: classify.NewEngine(nil, 0, logger),
		Matcher:    match.NewEngine(0, nil),
		Connector:  f.erp,
		Executor:   resilience.NewExecutor(rcfg, logger),
		Storage:    f.store,
		Automation: &automation.Config{
			DefaultLevel:          string(level),
			DuplicateLookbackDays: 365,
		},
		Queue:  f.queue,
		Logger: logger,
	})
	return f
}

func apInvoiceRequest(number string) pipeline.SubmitRequest {
	return pipeline.SubmitRequest{
		Source:         "edi",
		SourceMetadata: map[string]string{"source_code": "810"},
		RawFields: map[string]any{
			"invoice_number": number,
			"vendor_number":  "V-100",
			"amount":         1250.5,
		},
	}
}

func TestSubmitAutoLink(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	doc, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1001"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.DocType != documents.TypeAPInvoice {
		t.Errorf("doc_type = %s, want AP_INVOICE", doc.DocType)
	}
	if doc.Status != documents.StatusERPValidationPend {
		t.Errorf("status = %s, want erp_validation_pending", doc.Status)
	}
	if doc.Classification == nil || doc.Classification.Method != classify.MethodSourceCode {
		t.Errorf("classification = %+v, want source-code", doc.Classification)
	}
	if doc.Match == nil || doc.Match.Method != match.MethodExactID {
		t.Errorf("match = %+v, want exact-id", doc.Match)
	}
	if doc.PartyID == nil || *doc.PartyID != vendorID {
		t.Errorf("party_id = %v, want %v", doc.PartyID, vendorID)
	}
	if doc.DocumentNumber == nil || *doc.DocumentNumber != "INV-1001" {
		t.Errorf("document_number = %v, want INV-1001", doc.DocumentNumber)
	}
	if doc.Amount == nil || *doc.Amount != 1250.5 {
		t.Errorf("amount = %v, want 1250.5", doc.Amount)
	}
	if !f.erp.Linked(doc.ID) {
		t.Error("expected connector Link call")
	}

	refs := f.docs.refs[doc.ID]
	if len(refs) != 1 || refs[0].System != documents.RefSystemERP {
		t.Errorf("refs = %+v, want one erp ref", refs)
	}

	history := f.docs.history[doc.ID]
	wantEvents := []string{"intake", "classify", "extract", "auto_link"}
	if len(history) != len(wantEvents) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantEvents))
	}
	for i, want := range wantEvents {
		if history[i].Event != want {
			t.Errorf("history[%d] = %s, want %s", i, history[i].Event, want)
		}
	}
	if history[0].Actor != "api" {
		t.Errorf("intake actor = %s, want api", history[0].Actor)
	}
	if history[1].Actor != "pipeline" {
		t.Errorf("classify actor = %s, want pipeline", history[1].Actor)
	}
}

func TestSubmitManualLevelHolds(t *testing.T) {
	f := newFixture(t, automation.LevelManual)

	doc, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1002"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.Status != documents.StatusVendorPending {
		t.Errorf("status = %s, want vendor_pending", doc.Status)
	}
	if f.erp.Linked(doc.ID) || f.erp.Drafted(doc.ID) {
		t.Error("manual level must not reach the connector")
	}
	if len(f.docs.refs[doc.ID]) != 0 {
		t.Errorf("refs = %+v, want none", f.docs.refs[doc.ID])
	}

	history := f.docs.history[doc.ID]
	last := history[len(history)-1]
	if last.Event != "hold" || !strings.Contains(last.Reason, "manual") {
		t.Errorf("last entry = %s %q, want hold with manual reason", last.Event, last.Reason)
	}
}

func TestSubmitCreateDraftLevel(t *testing.T) {
	f := newFixture(t, automation.LevelAutoCreateDraft)

	doc, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1003"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.Status != documents.StatusERPValidationPend {
		t.Errorf("status = %s, want erp_validation_pending", doc.Status)
	}
	if !f.erp.Drafted(doc.ID) {
		t.Error("expected connector CreateDraft call")
	}
	if f.erp.Linked(doc.ID) {
		t.Error("create-draft level must not call Link")
	}
}

func TestSubmitFastPathReview(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	doc, err := f.svc.Submit(context.Background(), pipeline.SubmitRequest{
		Source:         "edi",
		SourceMetadata: map[string]string{"source_code": "821"},
		RawFields:      map[string]any{"vendor_name": "Acme Industrial Supply"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.DocType != documents.TypeBankStatement {
		t.Errorf("doc_type = %s, want BANK_STATEMENT", doc.DocType)
	}
	if doc.Status != documents.StatusReadyForReview {
		t.Errorf("status = %s, want ready_for_review", doc.Status)
	}
	if doc.Match == nil || doc.Match.Method != match.MethodExactName {
		t.Errorf("match = %+v, want exact-name", doc.Match)
	}
	if doc.PartyID == nil || *doc.PartyID != vendorID {
		t.Errorf("party_id = %v, want %v", doc.PartyID, vendorID)
	}
	if doc.DocumentNumber != nil {
		t.Errorf("document_number = %v, want nil on the fast path", doc.DocumentNumber)
	}
	if f.erp.Linked(doc.ID) {
		t.Error("review machine must not reach the connector")
	}

	history := f.docs.history[doc.ID]
	if len(history) != 2 || history[1].Event != "classify" {
		t.Errorf("history = %+v, want intake then classify", history)
	}
}

func TestSubmitUnclassifiedParksForTriage(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	doc, err := f.svc.Submit(context.Background(), pipeline.SubmitRequest{
		Source:    "mailbox",
		RawFields: map[string]any{"subject": "misc correspondence"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.DocType != documents.TypeOther {
		t.Errorf("doc_type = %s, want OTHER", doc.DocType)
	}
	if doc.Status != documents.StatusTriagePending {
		t.Errorf("status = %s, want triage_pending", doc.Status)
	}
	if doc.Classification == nil || doc.Classification.Method != classify.MethodNone {
		t.Errorf("classification = %+v, want none", doc.Classification)
	}
}

func TestSubmitGateHoldsBelowConfidenceThreshold(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	// field-pattern classification carries 0.85, below the default 0.92
	doc, err := f.svc.Submit(context.Background(), pipeline.SubmitRequest{
		Source: "mailbox",
		RawFields: map[string]any{
			"order_number":  "PO-77",
			"vendor_number": "V-100",
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.DocType != documents.TypePurchaseOrder {
		t.Errorf("doc_type = %s, want PURCHASE_ORDER", doc.DocType)
	}
	if doc.Status != documents.StatusVendorPending {
		t.Errorf("status = %s, want vendor_pending", doc.Status)
	}
	if f.erp.Linked(doc.ID) || f.erp.Drafted(doc.ID) {
		t.Error("low confidence must not reach the connector")
	}

	history := f.docs.history[doc.ID]
	last := history[len(history)-1]
	if !strings.Contains(last.Reason, "confidence") {
		t.Errorf("hold reason = %q, want confidence threshold", last.Reason)
	}
}

func TestSubmitGateHoldsUnresolvedParty(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	doc, err := f.svc.Submit(context.Background(), pipeline.SubmitRequest{
		Source:         "edi",
		SourceMetadata: map[string]string{"source_code": "810"},
		RawFields: map[string]any{
			"invoice_number": "INV-2002",
			"vendor_name":    "Conglomerated Widgets",
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.Status != documents.StatusVendorPending {
		t.Errorf("status = %s, want vendor_pending", doc.Status)
	}
	if doc.PartyID != nil {
		t.Errorf("party_id = %v, want nil", doc.PartyID)
	}
	if doc.Match == nil || doc.Match.Method != match.MethodNone {
		t.Errorf("match = %+v, want none", doc.Match)
	}
}

func TestSubmitGateHoldsDuplicate(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	first, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1001"))
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if first.Status != documents.StatusERPValidationPend {
		t.Fatalf("first status = %s, want erp_validation_pending", first.Status)
	}

	second, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1001"))
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if second.Status != documents.StatusVendorPending {
		t.Errorf("duplicate status = %s, want vendor_pending", second.Status)
	}
	if f.erp.Linked(second.ID) {
		t.Error("duplicate must not reach the connector")
	}

	history := f.docs.history[second.ID]
	last := history[len(history)-1]
	if !strings.Contains(last.Reason, "same party and number") {
		t.Errorf("hold reason = %q, want duplicate reason", last.Reason)
	}
}

func TestSubmitERPFailureParksDocument(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)
	f.erp.Err = errors.New("erp offline")

	doc, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1004"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.Status != documents.StatusFailed {
		t.Errorf("status = %s, want failed", doc.Status)
	}
	if doc.LastError == nil || !strings.Contains(*doc.LastError, "erp auto-link") {
		t.Errorf("last_error = %v, want erp auto-link failure", doc.LastError)
	}
	if len(f.docs.refs[doc.ID]) != 0 {
		t.Errorf("refs = %+v, want none after connector failure", f.docs.refs[doc.ID])
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	t.Run("missing source", func(t *testing.T) {
		_, err := f.svc.Submit(context.Background(), pipeline.SubmitRequest{Source: "  "})
		if !errors.Is(err, pipeline.ErrInvalidBody) {
			t.Errorf("err = %v, want ErrInvalidBody", err)
		}
	})

	t.Run("preset id conflict", func(t *testing.T) {
		id := uuid.New()
		req := apInvoiceRequest("INV-1005")
		req.ID = &id

		if _, err := f.svc.Submit(context.Background(), req); err != nil {
			t.Fatalf("first Submit: %v", err)
		}
		_, err := f.svc.Submit(context.Background(), req)
		if !errors.Is(err, documents.ErrConflict) {
			t.Errorf("err = %v, want ErrConflict", err)
		}
	})
}

func TestSubmitDegradesWhenDirectoryUnavailable(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)
	f.parties.candidatesErr = errors.New("directory offline")

	doc, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1006"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if doc.Status != documents.StatusVendorPending {
		t.Errorf("status = %s, want vendor_pending", doc.Status)
	}
	if doc.Match == nil || doc.Match.Method != match.MethodNone {
		t.Errorf("match = %+v, want none when directory unavailable", doc.Match)
	}
}

func TestSubmitPublishesEvent(t *testing.T) {
	f := newFixture(t, automation.LevelManual)

	doc, err := f.svc.Submit(context.Background(), apInvoiceRequest("INV-1007"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(f.queue.subjects) != 1 {
		t.Fatalf("publishes = %d, want 1", len(f.queue.subjects))
	}
	if f.queue.subjects[0] != pipeline.DefaultEventSubject {
		t.Errorf("subject = %s, want %s", f.queue.subjects[0], pipeline.DefaultEventSubject)
	}

	var event pipeline.Event
	if err := json.Unmarshal(f.queue.payloads[0], &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.DocumentID != doc.ID {
		t.Errorf("event document_id = %v, want %v", event.DocumentID, doc.ID)
	}
	if event.Event != "submitted" {
		t.Errorf("event = %s, want submitted", event.Event)
	}
	if event.Status != documents.StatusVendorPending {
		t.Errorf("event status = %s, want vendor_pending", event.Status)
	}
	if event.Actor != "api" {
		t.Errorf("event actor = %s, want api", event.Actor)
	}
}

func TestSubmitUpload(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	data := []byte("%PDF-1.7 fake invoice body")
	req := pipeline.UploadRequest{
		Source:         "upload",
		SourceMetadata: map[string]string{"source_code": "810"},
		RawFields: map[string]any{
			"invoice_number": "INV-3001",
			"vendor_number":  "V-100",
		},
		Filename:    "scans/Q1 invoice.pdf",
		ContentType: "application/pdf",
		Data:        data,
	}

	doc, err := f.svc.SubmitUpload(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}

	if doc.Filename == nil || *doc.Filename != "Q1 invoice.pdf" {
		t.Errorf("filename = %v, want Q1 invoice.pdf", doc.Filename)
	}
	if doc.SizeBytes == nil || *doc.SizeBytes != int64(len(data)) {
		t.Errorf("size_bytes = %v, want %d", doc.SizeBytes, len(data))
	}
	if doc.Status != documents.StatusERPValidationPend {
		t.Errorf("status = %s, want erp_validation_pending", doc.Status)
	}

	var storageKey string
	for _, ref := range f.docs.refs[doc.ID] {
		if ref.System == documents.RefSystemStorage {
			storageKey = ref.Ref
		}
	}
	if storageKey == "" {
		t.Fatal("expected a storage external ref")
	}
	if !strings.HasPrefix(storageKey, "intake/"+doc.ID.String()+"/") {
		t.Errorf("storage key = %s, want intake/%s/ prefix", storageKey, doc.ID)
	}
	if stored, ok := f.store.blobs[storageKey]; !ok || !bytes.Equal(stored, data) {
		t.Errorf("stored blob missing or altered at %s", storageKey)
	}
}

func TestSubmitUploadValidation(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)

	t.Run("empty file", func(t *testing.T) {
		_, err := f.svc.SubmitUpload(context.Background(), pipeline.UploadRequest{
			Source:   "upload",
			Filename: "empty.pdf",
		})
		if !errors.Is(err, documents.ErrInvalidFile) {
			t.Errorf("err = %v, want ErrInvalidFile", err)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := f.svc.SubmitUpload(context.Background(), pipeline.UploadRequest{
			Filename: "doc.pdf",
			Data:     []byte("content"),
		})
		if !errors.Is(err, pipeline.ErrInvalidBody) {
			t.Errorf("err = %v, want ErrInvalidBody", err)
		}
	})
}

func TestSubmitUploadCleansUpOnCreateFailure(t *testing.T) {
	f := newFixture(t, automation.LevelAutoLink)
	f.docs.createErr = documents.ErrConflict

	_, err := f.svc.SubmitUpload(context.Background(), pipeline.UploadRequest{
		Source:   "upload",
		Filename: "doc.pdf",
		Data:     []byte("content"),
	})
	if !errors.Is(err, documents.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(f.store.blobs) != 0 {
		t.Errorf("blobs = %d, want orphaned upload deleted", len(f.store.blobs))
	}
}

func TestSubmitBatch(t *testing.T) {
	f := newFixture(t, automation.LevelManual)

	reqs := []pipeline.SubmitRequest{
		apInvoiceRequest("INV-4001"),
		{Source: ""},
		apInvoiceRequest("INV-4002"),
	}

	items, err := f.svc.SubmitBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}

	for i, item := range items {
		if item.Index != i {
			t.Errorf("items[%d].Index = %d, want %d", i, item.Index, i)
		}
	}
	if items[0].Document == nil || items[0].Error != "" {
		t.Errorf("items[0] = %+v, want success", items[0])
	}
	if items[1].Document != nil || !strings.Contains(items[1].Error, "source is required") {
		t.Errorf("items[1] = %+v, want source error", items[1])
	}
	if items[2].Document == nil || items[2].Error != "" {
		t.Errorf("items[2] = %+v, want success", items[2])
	}
}

func TestSubmitBatchLimits(t *testing.T) {
	f := newFixture(t, automation.LevelManual)

	t.Run("empty batch", func(t *testing.T) {
		_, err := f.svc.SubmitBatch(context.Background(), nil)
		if !errors.Is(err, pipeline.ErrInvalidBody) {
			t.Errorf("err = %v, want ErrInvalidBody", err)
		}
	})

	t.Run("oversized batch", func(t *testing.T) {
		_, err := f.svc.SubmitBatch(context.Background(), make([]pipeline.SubmitRequest, 101))
		if !errors.Is(err, pipeline.ErrBatchTooLarge) {
			t.Errorf("err = %v, want ErrBatchTooLarge", err)
		}
	})
}
