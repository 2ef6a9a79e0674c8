package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/courier-labs/courier/internal/automation"
	"github.com/courier-labs/courier/internal/classify"
	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/erp"
	"github.com/courier-labs/courier/internal/match"
	"github.com/courier-labs/courier/internal/metrics"
	"github.com/courier-labs/courier/internal/parties"
	"github.com/courier-labs/courier/internal/workflow"
	"github.com/courier-labs/courier/pkg/formatting"
	"github.com/courier-labs/courier/pkg/queue"
	"github.com/courier-labs/courier/pkg/resilience"
	"github.com/courier-labs/courier/pkg/storage"
)

const (
	defaultActor       = "api"
	actorPipeline      = "pipeline"
	defaultBatchLimit  = 4
	maxBatchSize       = 100
	defaultUploadBytes = 32 << 20
)

// Field keys consulted for typed column projection.
var (
	numberKeys = []string{"invoice_number", "order_number", "credit_memo_number", "document_number"}
	amountKeys = []string{"amount", "total_amount", "amount_due"}
)

// Deps bundles the collaborators the pipeline composes. Queue is
// optional; a nil queue disables event publishing. Metrics defaults to
// a private registry when nil.
type Deps struct {
	Documents  documents.System
	Parties    parties.System
	Classifier *classify.Engine
	Matcher    *match.Engine
	Connector  erp.Connector
	Executor   *resilience.Executor
	Storage    storage.System
	Automation *automation.Config
	Queue      queue.System
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	EventSubject   string
	BatchLimit     int
	MaxUploadBytes int64
}

type service struct {
	documents  documents.System
	parties    parties.System
	classifier *classify.Engine
	matcher    *match.Engine
	connector  erp.Connector
	executor   *resilience.Executor
	storage    storage.System
	automation *automation.Config
	queue      queue.System
	metrics    *metrics.Metrics
	logger     *slog.Logger

	locks          *keyedMutex
	eventSubject   string
	batchLimit     int
	maxUploadBytes int64
}

// New creates the pipeline system.
func New(deps Deps) System {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New("pipeline")
	}
	if deps.EventSubject == "" {
		deps.EventSubject = DefaultEventSubject
	}
	if deps.BatchLimit <= 0 {
		deps.BatchLimit = defaultBatchLimit
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultUploadBytes
	}

	return &service{
		documents:      deps.Documents,
		parties:        deps.Parties,
		classifier:     deps.Classifier,
		matcher:        deps.Matcher,
		connector:      deps.Connector,
		executor:       deps.Executor,
		storage:        deps.Storage,
		automation:     deps.Automation,
		queue:          deps.Queue,
		metrics:        deps.Metrics,
		logger:         deps.Logger.With("system", "pipeline"),
		locks:          newKeyedMutex(),
		eventSubject:   deps.EventSubject,
		batchLimit:     deps.BatchLimit,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger, s.maxUploadBytes)
}

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*documents.Document, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidBody)
	}
	actor := orActor(req.Actor)
	start := time.Now()

	doc, err := s.documents.Create(ctx, documents.CreateCommand{
		ID:             req.ID,
		Source:         req.Source,
		SourceMetadata: req.SourceMetadata,
		RawFields:      req.RawFields,
		Actor:          actor,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSubmission(req.Source)

	unlock := s.locks.lock(doc.ID)
	defer unlock()

	doc, err = s.process(ctx, doc)
	s.metrics.ObservePipeline(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, doc, "submitted", actor)
	return doc, nil
}

func (s *service) SubmitUpload(ctx context.Context, req UploadRequest) (*documents.Document, error) {
	if strings.TrimSpace(req.Source) == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidBody)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", documents.ErrInvalidFile)
	}
	actor := orActor(req.Actor)
	start := time.Now()

	id := uuid.New()
	filename := sanitizeFilename(req.Filename)
	key := fmt.Sprintf("intake/%s/%s", id, filename)

	err := s.executor.Execute(ctx, "storage-upload", func(ctx context.Context) error {
		return s.storage.Upload(ctx, key, bytes.NewReader(req.Data), storage.UploadOptions{
			ContentType: req.ContentType,
			Metadata:    map[string]string{"source": req.Source},
		})
	}, transientRemote)
	if err != nil {
		return nil, fmt.Errorf("store source file: %w", err)
	}

	size := int64(len(req.Data))
	doc, err := s.documents.Create(ctx, documents.CreateCommand{
		ID:             &id,
		Source:         req.Source,
		SourceMetadata: req.SourceMetadata,
		RawFields:      req.RawFields,
		Filename:       &filename,
		ContentType:    &req.ContentType,
		SizeBytes:      &size,
		PageCount:      req.PageCount,
		Actor:          actor,
	})
	if err != nil {
		if derr := s.storage.Delete(ctx, key); derr != nil {
			s.logger.Error("orphaned source file after create failure", "key", key, "error", derr)
		}
		return nil, err
	}
	s.metrics.RecordSubmission(req.Source)

	if err := s.documents.AddExternalRef(ctx, doc.ID, documents.RefSystemStorage, key); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(doc.ID)
	defer unlock()

	doc, err = s.process(ctx, doc)
	s.metrics.ObservePipeline(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, doc, "submitted", actor)
	return doc, nil
}

func (s *service) SubmitBatch(ctx context.Context, reqs []SubmitRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrInvalidBody)
	}
	if len(reqs) > maxBatchSize {
		return nil, fmt.Errorf("%w: %d records (max %d)", ErrBatchTooLarge, len(reqs), maxBatchSize)
	}

	items := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.batchLimit)

	for i, req := range reqs {
		g.Go(func() error {
			doc, err := s.Submit(ctx, req)
			item := BatchItem{Index: i, Document: doc}
			if err != nil {
				item.Error = err.Error()
			}
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// process runs the automated stages for a freshly captured document:
// classify, then for gated machines extract and gate. Fast-path types
// park after classification with party data resolved in the same write.
func (s *service) process(ctx context.Context, doc *documents.Document) (*documents.Document, error) {
	cls := s.classifier.Classify(ctx, doc.RawFields, doc.SourceMetadata)
	docType := cls.SuggestedType
	s.metrics.RecordClassification(cls.Method, string(docType))

	machine, err := workflow.MachineFor(docType)
	if err != nil {
		return nil, err
	}

	tr, err := machine.Apply(doc.Status, workflow.EventClassify, workflow.GuardInput{})
	if err != nil {
		return nil, err
	}

	upd := documents.Update{
		DocType:        &docType,
		Classification: &cls,
		Transition:     record(tr, actorPipeline, classifyReason(cls)),
	}

	if _, ok := machine.Target(tr.To, workflow.EventExtract); !ok {
		m := s.resolveMatch(ctx, doc.RawFields)
		s.metrics.RecordMatch(m.Method)
		upd.Match = &m
		upd.PartyID = m.PartyID
		return s.apply(ctx, doc, upd)
	}

	doc, err = s.apply(ctx, doc, upd)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, doc, machine)
}

// advance runs the extract and gate stages where the machine defines
// them from the document's current status. Reclassification reuses it to
// resume a document under its new machine.
func (s *service) advance(ctx context.Context, doc *documents.Document, machine *workflow.Machine) (*documents.Document, error) {
	if _, ok := machine.Target(doc.Status, workflow.EventExtract); ok {
		m := s.resolveMatch(ctx, doc.RawFields)
		s.metrics.RecordMatch(m.Method)

		tr, err := machine.Apply(doc.Status, workflow.EventExtract, workflow.GuardInput{})
		if err != nil {
			return nil, err
		}

		upd := documents.Update{
			Match:      &m,
			PartyID:    m.PartyID,
			Transition: record(tr, actorPipeline, matchReason(m)),
		}
		if number := formatting.FieldString(doc.RawFields, numberKeys...); number != "" {
			upd.DocumentNumber = &number
		}
		if amount, ok := formatting.FieldFloat(doc.RawFields, amountKeys...); ok {
			upd.Amount = &amount
		}

		doc, err = s.apply(ctx, doc, upd)
		if err != nil {
			return nil, err
		}
	}

	if _, ok := machine.Target(doc.Status, workflow.EventHold); ok {
		return s.gate(ctx, doc, machine)
	}
	return doc, nil
}

// gate evaluates the automation decision and either parks the document
// or executes the ERP side effect and advances.
func (s *service) gate(ctx context.Context, doc *documents.Document, machine *workflow.Machine) (*documents.Document, error) {
	in, err := s.gateInput(ctx, doc)
	if err != nil {
		return nil, err
	}

	decision := automation.Decide(in)
	s.metrics.RecordGateDecision(string(decision.Action), string(doc.DocType))

	if decision.Action == automation.ActionHold {
		tr, err := machine.Apply(doc.Status, decision.Event, guardInput(doc, in.HasExternalRef, false))
		if err != nil {
			return nil, err
		}
		return s.apply(ctx, doc, documents.Update{
			Transition: record(tr, actorPipeline, decision.Reason),
		})
	}

	ref, err := s.callERP(ctx, erpRequest(doc), decision.Action)
	if err != nil {
		return s.fail(ctx, doc, machine, fmt.Sprintf("erp %s: %v", decision.Action, err))
	}

	if err := s.documents.AddExternalRef(ctx, doc.ID, ref.System, ref.Ref); err != nil {
		return nil, err
	}

	tr, err := machine.Apply(doc.Status, decision.Event, guardInput(doc, true, false))
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, doc, documents.Update{
		ClearError: true,
		Transition: record(tr, actorPipeline, decision.Reason),
	})
}

// gateInput assembles the gate snapshot, performing the duplicate and
// existing-ref lookups the decision depends on.
func (s *service) gateInput(ctx context.Context, doc *documents.Document) (automation.DecideInput, error) {
	in := automation.DecideInput{
		Level:         s.automation.LevelFor(doc.DocType),
		PartyResolved: doc.PartyID != nil,
		Thresholds:    s.automation.GateThresholds(),
	}
	if doc.Classification != nil {
		in.Confidence = doc.Classification.Confidence
	}
	if doc.Match != nil {
		in.MatchScore = doc.Match.Score
	}

	if doc.PartyID != nil && doc.DocumentNumber != nil && *doc.DocumentNumber != "" {
		dup, err := s.documents.HasDuplicate(ctx, documents.DuplicateQuery{
			PartyID:        *doc.PartyID,
			DocumentNumber: *doc.DocumentNumber,
			Since:          time.Now().Add(-s.automation.LookbackDuration()),
			ExcludeID:      doc.ID,
		})
		if err != nil {
			return in, err
		}
		in.DuplicateFound = dup
	}

	hasRef, err := s.documents.HasExternalRef(ctx, doc.ID, documents.RefSystemERP)
	if err != nil {
		return in, err
	}
	in.HasExternalRef = hasRef
	return in, nil
}

// callERP invokes the connector under the retry and breaker executor.
func (s *service) callERP(ctx context.Context, req erp.Request, action automation.Action) (erp.Ref, error) {
	operation := "erp-link"
	if action == automation.ActionCreateDraft {
		operation = "erp-create-draft"
	}

	var ref erp.Ref
	err := s.executor.Execute(ctx, operation, func(ctx context.Context) error {
		var callErr error
		if action == automation.ActionAutoLink {
			ref, callErr = s.connector.Link(ctx, req)
		} else {
			ref, callErr = s.connector.CreateDraft(ctx, req)
		}
		return callErr
	}, transientRemote)

	s.metrics.RecordERPCall(operation, err)
	return ref, err
}

// fail parks the document in the failed state with last_error set.
// Callers treat the parked document as a handled outcome, not an error.
func (s *service) fail(ctx context.Context, doc *documents.Document, machine *workflow.Machine, msg string) (*documents.Document, error) {
	s.logger.Error("pipeline stage failed",
		"document_id", doc.ID,
		"status", doc.Status,
		"error", msg,
	)

	tr, err := machine.Apply(doc.Status, workflow.EventFail, workflow.GuardInput{})
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, doc, documents.Update{
		SetError:   &msg,
		Transition: record(tr, actorPipeline, msg),
	})
}

// resolveMatch runs the matching engine over the current party
// directory. Directory failures degrade to a no-match result so the
// gate holds the document for review instead of failing the pipeline.
func (s *service) resolveMatch(ctx context.Context, fields map[string]any) documents.MatchResult {
	candidates, err := s.parties.Candidates(ctx)
	if err != nil {
		s.logger.Warn("party candidates unavailable", "error", err)
		return documents.MatchResult{Method: match.MethodNone}
	}

	aliases, err := s.parties.LearnedAliases(ctx)
	if err != nil {
		s.logger.Warn("learned aliases unavailable", "error", err)
		aliases = nil
	}

	return s.matcher.Match(fields, candidates, aliases)
}

// apply persists an update and records the transition metric.
func (s *service) apply(ctx context.Context, doc *documents.Document, upd documents.Update) (*documents.Document, error) {
	updated, err := s.documents.Update(ctx, doc.ID, doc.Version, upd)
	if err != nil {
		return nil, err
	}
	if upd.Transition != nil {
		s.metrics.RecordTransition(string(updated.DocType), upd.Transition.Event)
	}
	return updated, nil
}

func (s *service) publish(ctx context.Context, doc *documents.Document, event, actor string) {
	if s.queue == nil {
		return
	}

	payload, err := json.Marshal(Event{
		DocumentID: doc.ID,
		DocType:    doc.DocType,
		Status:     doc.Status,
		Event:      event,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := s.queue.Publish(ctx, s.eventSubject, payload); err != nil {
		s.logger.Warn("event publish failed",
			"subject", s.eventSubject,
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func erpRequest(doc *documents.Document) erp.Request {
	req := erp.Request{
		DocumentID: doc.ID,
		DocType:    doc.DocType,
		Amount:     doc.Amount,
		Fields:     doc.RawFields,
	}
	if doc.PartyID != nil {
		req.PartyID = *doc.PartyID
	}
	if doc.DocumentNumber != nil {
		req.DocumentNumber = *doc.DocumentNumber
	}
	return req
}

func guardInput(doc *documents.Document, hasERPRef, invoiceLinked bool) workflow.GuardInput {
	in := workflow.GuardInput{
		PartyResolved: doc.PartyID != nil,
		HasERPRef:     hasERPRef,
		InvoiceLinked: invoiceLinked,
	}
	if doc.Classification != nil {
		in.Confidence = doc.Classification.Confidence
	}
	if doc.Match != nil {
		in.MatchScore = doc.Match.Score
	}
	return in
}

func record(tr workflow.Transition, actor, reason string) *documents.TransitionRecord {
	return &documents.TransitionRecord{
		FromStatus: tr.From,
		ToStatus:   tr.To,
		Event:      string(tr.Event),
		Actor:      actor,
		Reason:     reason,
	}
}

func classifyReason(cls documents.Classification) string {
	if cls.Method == classify.MethodNone {
		return "no classification strategy matched"
	}
	return fmt.Sprintf("classified as %s by %s (confidence %.2f)",
		cls.SuggestedType, cls.Method, cls.Confidence)
}

func matchReason(m documents.MatchResult) string {
	if m.PartyID == nil {
		return "no party match"
	}
	return fmt.Sprintf("matched party %s by %s (score %.2f)", m.PartyID, m.Method, m.Score)
}

// transientRemote treats remote call failures as retryable unless the
// context ended.
func transientRemote(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func orActor(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return defaultActor
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "document"
	}
	return name
}
