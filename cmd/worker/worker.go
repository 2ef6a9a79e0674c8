package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/courier-labs/courier/internal/classify"
	"github.com/courier-labs/courier/internal/config"
	"github.com/courier-labs/courier/internal/documents"
	"github.com/courier-labs/courier/internal/erp"
	"github.com/courier-labs/courier/internal/infrastructure"
	"github.com/courier-labs/courier/internal/match"
	"github.com/courier-labs/courier/internal/metrics"
	"github.com/courier-labs/courier/internal/parties"
	"github.com/courier-labs/courier/internal/pipeline"
	"github.com/courier-labs/courier/internal/suggest"
	"github.com/courier-labs/courier/pkg/resilience"
)

// Worker consumes intake records from the queue and runs them through
// the same pipeline the API uses. Members of the queue group share the
// intake stream, so additional worker processes scale horizontally.
type Worker struct {
	cfg      *config.Config
	infra    *infrastructure.Infrastructure
	pipeline pipeline.System
	metrics  *metrics.Metrics
	logger   *slog.Logger

	timeout time.Duration
	sem     chan struct{}
}

// NewWorker assembles the worker's infrastructure and pipeline.
func NewWorker(cfg *config.Config) (*Worker, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}
	logger := infra.Logger.With("module", "worker")
	m := metrics.New("courier_worker")

	docsSystem := documents.New(
		infra.Database.Connection(),
		infra.Storage,
		logger,
		cfg.API.Pagination,
	)
	partiesSystem := parties.New(
		infra.Database.Connection(),
		logger,
		cfg.API.Pagination,
	)

	var suggester classify.Suggester
	if cfg.Suggest.Enabled {
		suggester = suggest.New(&cfg.Suggest, logger)
	}

	pipelineSystem := pipeline.New(pipeline.Deps{
		Documents:      docsSystem,
		Parties:        partiesSystem,
		Classifier:     classify.NewEngine(suggester, classify.DefaultAIThreshold, logger),
		Matcher:        match.NewEngine(match.DefaultFuzzyThreshold, nil),
		Connector:      erp.NewMemory(),
		Executor:       resilience.NewExecutor(&cfg.Resilience, logger),
		Storage:        infra.Storage,
		Automation:     &cfg.Automation,
		Queue:          infra.Queue,
		Metrics:        m,
		Logger:         logger,
		EventSubject:   cfg.Worker.EventSubject,
		BatchLimit:     cfg.API.BatchLimit,
		MaxUploadBytes: cfg.API.MaxUploadSizeBytes(),
	})

	return &Worker{
		cfg:      cfg,
		infra:    infra,
		pipeline: pipelineSystem,
		metrics:  m,
		logger:   logger,
		timeout:  cfg.Worker.MessageTimeoutDuration(),
		sem:      make(chan struct{}, cfg.Worker.Concurrency),
	}, nil
}

// Start brings up the infrastructure, waits for the queue connection,
// and subscribes to the intake subject.
func (w *Worker) Start() error {
	if err := w.infra.Start(); err != nil {
		return err
	}
	w.infra.Lifecycle.WaitForStartup()

	err := w.infra.Queue.Subscribe(
		w.cfg.Worker.IntakeSubject,
		w.cfg.Worker.QueueGroup,
		w.handle,
	)
	if err != nil {
		return err
	}

	w.logger.Info(
		"worker consuming",
		"subject", w.cfg.Worker.IntakeSubject,
		"group", w.cfg.Worker.QueueGroup,
		"concurrency", w.cfg.Worker.Concurrency,
	)
	return nil
}

// Shutdown stops the infrastructure, draining the queue connection so
// in-flight deliveries finish before the database closes.
func (w *Worker) Shutdown(timeout time.Duration) error {
	w.logger.Info("initiating shutdown")
	return w.infra.Lifecycle.Shutdown(timeout)
}

// handle runs on the subscription's delivery goroutine. Processing
// happens on a separate goroutine bounded by the semaphore, so a full
// semaphore applies backpressure to delivery rather than dropping work.
func (w *Worker) handle(ctx context.Context, data []byte) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	go func() {
		defer func() { <-w.sem }()
		w.process(ctx, data)
	}()
}

func (w *Worker) process(ctx context.Context, data []byte) {
	var msg pipeline.IntakeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.logger.Error("discarding malformed intake message", "error", err)
		return
	}

	if !msg.PublishedAt.IsZero() {
		w.metrics.ObserveQueueLag(time.Since(msg.PublishedAt))
	}

	procCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	doc, err := w.pipeline.Submit(procCtx, msg.SubmitRequest)
	if err != nil {
		w.logger.Error(
			"intake processing failed",
			"source", msg.Source,
			"error", err,
		)
		return
	}

	w.logger.Info(
		"intake processed",
		"document", doc.ID,
		"type", doc.DocType,
		"status", doc.Status,
	)
}
